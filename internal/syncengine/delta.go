// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncengine

// DeltaType classifies a published sync message.
type DeltaType string

const (
	DeltaWatchlistAdd    DeltaType = "watchlist_add"
	DeltaWatchlistRemove DeltaType = "watchlist_remove"
	DeltaProgress        DeltaType = "progress"
	DeltaBatch           DeltaType = "batch"
)

// WatchlistAddDelta is one OR-Set add operation.
type WatchlistAddDelta struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	UniqueTag string `json:"unique_tag"`
	Physical  int64  `json:"physical"`
	Logical   int32  `json:"logical"`
	DeviceID  string `json:"device_id"`
}

// WatchlistRemoveDelta tombstones one previously added tag.
type WatchlistRemoveDelta struct {
	UserID    string `json:"user_id"`
	ContentID string `json:"content_id"`
	UniqueTag string `json:"unique_tag"`
	Physical  int64  `json:"physical"`
	Logical   int32  `json:"logical"`
	DeviceID  string `json:"device_id"`
}

// ProgressDelta is one LWW playback-position update.
type ProgressDelta struct {
	UserID          string  `json:"user_id"`
	ContentID       string  `json:"content_id"`
	PositionSeconds float64 `json:"position_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Physical        int64   `json:"physical"`
	Logical         int32   `json:"logical"`
	DeviceID        string  `json:"device_id"`
}

// Envelope wraps one delta with a type tag so a subscriber can dispatch
// without knowing the payload shape in advance.
type Envelope struct {
	Type    DeltaType `json:"type"`
	Payload any       `json:"payload"`
}

// Batch wraps several envelopes published as a single message, per
// spec.md §4.E's optional batching (flush at 50 items or 1s elapsed).
type Batch struct {
	Envelopes []Envelope `json:"envelopes"`
}
