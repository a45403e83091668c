// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"fmt"

	"github.com/streamforge/discovery/internal/store"
)

// ProgressStore is the subset of internal/store the LWW playback register
// needs.
type ProgressStore interface {
	UpsertProgress(ctx context.Context, p store.ProgressEntry) error
	GetProgress(ctx context.Context, userID, contentID string) (*store.ProgressEntry, error)
}

var _ ProgressStore = (*store.Store)(nil)

// Progress is a last-writer-wins register over playback position, per
// spec.md §4.E: "overwrite iff incoming HLC > stored HLC."
type Progress struct {
	store ProgressStore
	clock *Clock
}

// NewProgress builds a Progress register backed by s.
func NewProgress(s ProgressStore, clock *Clock) *Progress {
	return &Progress{store: s, clock: clock}
}

// Set stamps a fresh local HLC and unconditionally writes the position
// (a local write always wins over whatever is stored), returning the
// delta to publish.
func (p *Progress) Set(ctx context.Context, userID, contentID string, position, duration float64, deviceID string, wallMS int64) (ProgressDelta, error) {
	hlc := p.clock.Now(wallMS)
	entry := store.ProgressEntry{
		UserID: userID, ContentID: contentID,
		PositionSeconds: position, DurationSeconds: duration,
		TimestampPhysical: hlc.Physical, TimestampLogical: hlc.Logical,
		DeviceID: deviceID,
	}
	if err := p.store.UpsertProgress(ctx, entry); err != nil {
		return ProgressDelta{}, fmt.Errorf("set progress: %w", err)
	}
	return ProgressDelta{
		UserID: userID, ContentID: contentID,
		PositionSeconds: position, DurationSeconds: duration,
		Physical: hlc.Physical, Logical: hlc.Logical, DeviceID: deviceID,
	}, nil
}

// Merge applies a received progress delta, overwriting the stored value
// only when the incoming HLC strictly follows what's stored.
func (p *Progress) Merge(ctx context.Context, d ProgressDelta, wallMS int64) error {
	incoming := HLC{Physical: d.Physical, Logical: d.Logical}
	p.clock.Receive(wallMS, incoming)

	current, err := p.store.GetProgress(ctx, d.UserID, d.ContentID)
	if err != nil {
		return fmt.Errorf("get current progress: %w", err)
	}
	if current != nil {
		stored := HLC{Physical: current.TimestampPhysical, Logical: current.TimestampLogical}
		if !incoming.After(stored) {
			return nil
		}
	}

	return p.store.UpsertProgress(ctx, store.ProgressEntry{
		UserID: d.UserID, ContentID: d.ContentID,
		PositionSeconds: d.PositionSeconds, DurationSeconds: d.DurationSeconds,
		TimestampPhysical: d.Physical, TimestampLogical: d.Logical,
		DeviceID: d.DeviceID,
	})
}
