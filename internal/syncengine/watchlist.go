// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/streamforge/discovery/internal/store"
)

// WatchlistStore is the subset of internal/store the OR-Set needs. It is
// the raw CRDT state (adds and tombstones both persist as rows); merge
// semantics live in this package, not in the store.
type WatchlistStore interface {
	UpsertWatchlistEntry(ctx context.Context, e store.WatchlistEntry) error
	ListWatchlist(ctx context.Context, userID string) ([]store.WatchlistEntry, error)
	AllWatchlistTags(ctx context.Context, userID, contentID string) ([]store.WatchlistEntry, error)
}

var _ WatchlistStore = (*store.Store)(nil)

// Watchlist is an observed-remove set over a user's watchlist content ids.
type Watchlist struct {
	store WatchlistStore
	clock *Clock
}

// NewWatchlist builds a Watchlist backed by s, using clock for locally
// originated operations.
func NewWatchlist(s WatchlistStore, clock *Clock) *Watchlist {
	return &Watchlist{store: s, clock: clock}
}

// Add appends a fresh add-tag for contentID and returns the delta to
// publish, per spec.md §4.E's add(c) operation.
func (w *Watchlist) Add(ctx context.Context, userID, contentID, deviceID string, wallMS int64) (WatchlistAddDelta, error) {
	hlc := w.clock.Now(wallMS)
	tag := uuid.NewString()

	entry := store.WatchlistEntry{
		UserID:            userID,
		ContentID:         contentID,
		UniqueTag:         tag,
		TimestampPhysical: hlc.Physical,
		TimestampLogical:  hlc.Logical,
		DeviceID:          deviceID,
		IsRemoved:         false,
	}
	if err := w.store.UpsertWatchlistEntry(ctx, entry); err != nil {
		return WatchlistAddDelta{}, fmt.Errorf("add watchlist entry: %w", err)
	}

	return WatchlistAddDelta{
		UserID: userID, ContentID: contentID, UniqueTag: tag,
		Physical: hlc.Physical, Logical: hlc.Logical, DeviceID: deviceID,
	}, nil
}

// Remove tombstones every live tag for contentID and returns one delta per
// tombstoned tag, per spec.md §4.E's remove(c) operation (a remove-delta
// per tag).
func (w *Watchlist) Remove(ctx context.Context, userID, contentID, deviceID string, wallMS int64) ([]WatchlistRemoveDelta, error) {
	tags, err := w.store.AllWatchlistTags(ctx, userID, contentID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist tags: %w", err)
	}

	var deltas []WatchlistRemoveDelta
	for _, t := range tags {
		if t.IsRemoved {
			continue
		}
		hlc := w.clock.Now(wallMS)
		t.IsRemoved = true
		t.TimestampPhysical = hlc.Physical
		t.TimestampLogical = hlc.Logical
		t.DeviceID = deviceID
		if err := w.store.UpsertWatchlistEntry(ctx, t); err != nil {
			return deltas, fmt.Errorf("tombstone watchlist tag %s: %w", t.UniqueTag, err)
		}
		deltas = append(deltas, WatchlistRemoveDelta{
			UserID: userID, ContentID: contentID, UniqueTag: t.UniqueTag,
			Physical: hlc.Physical, Logical: hlc.Logical, DeviceID: deviceID,
		})
	}
	return deltas, nil
}

// Effective returns the content ids currently present — adds whose tag
// hasn't been tombstoned — per spec.md §4.E's effective_entries().
func (w *Watchlist) Effective(ctx context.Context, userID string) ([]string, error) {
	entries, err := w.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ContentID)
	}
	return ids, nil
}

// MergeAdd applies a received add-delta. Merge is the componentwise union
// of adds: an idempotent upsert keyed on unique_tag. An add-delta can
// arrive after its own matching remove-delta has already landed — cross-
// device delivery order is not guaranteed, and an offline-queue replay can
// redeliver a stale add long after the fact — so this first checks whether
// the tag is already tombstoned locally and refuses to resurrect it; the
// OR-Set's "present iff an add exists and no remove for the same tag"
// invariant must never go remove-then-add.
func (w *Watchlist) MergeAdd(ctx context.Context, d WatchlistAddDelta, wallMS int64) error {
	w.clock.Receive(wallMS, HLC{Physical: d.Physical, Logical: d.Logical})

	existing, err := w.store.AllWatchlistTags(ctx, d.UserID, d.ContentID)
	if err != nil {
		return fmt.Errorf("list watchlist tags: %w", err)
	}
	for _, e := range existing {
		if e.UniqueTag == d.UniqueTag && e.IsRemoved {
			return nil
		}
	}

	return w.store.UpsertWatchlistEntry(ctx, store.WatchlistEntry{
		UserID: d.UserID, ContentID: d.ContentID, UniqueTag: d.UniqueTag,
		TimestampPhysical: d.Physical, TimestampLogical: d.Logical,
		DeviceID: d.DeviceID, IsRemoved: false,
	})
}

// MergeRemove applies a received remove-delta. The tombstone row is written
// even if the tag was never observed locally, so a later add-delta for that
// tag (network reorder) stays tombstoned on arrival.
func (w *Watchlist) MergeRemove(ctx context.Context, d WatchlistRemoveDelta, wallMS int64) error {
	w.clock.Receive(wallMS, HLC{Physical: d.Physical, Logical: d.Logical})
	return w.store.UpsertWatchlistEntry(ctx, store.WatchlistEntry{
		UserID: d.UserID, ContentID: d.ContentID, UniqueTag: d.UniqueTag,
		TimestampPhysical: d.Physical, TimestampLogical: d.Logical,
		DeviceID: d.DeviceID, IsRemoved: true,
	})
}
