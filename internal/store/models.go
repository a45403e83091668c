// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "time"

// Content is one canonical title row.
type Content struct {
	ID              string
	CanonicalTitle  string
	ReleaseYear     int
	ContentType     string
	RuntimeMinutes  int
	Synopsis        string
	QualityScore    float64
	PopularityScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	ExternalIDs  map[string]string // namespace -> id, e.g. "imdb" -> "tt0111161"
	PlatformIDs  map[string]string // platform -> platform content id
	Genres       []string
	Ratings      map[string]string // rating system -> rating value
}

// Availability is one platform-availability row.
type Availability struct {
	ContentID      string
	Platform       string
	Region         string
	OfferType      string
	PriceCents     int
	DeepLink       string
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
	LastSeen       time.Time
}

// EntityMapping records how a source record was resolved to a content id.
type EntityMapping struct {
	ContentID      string
	Source         string
	SourceRecordID string
	Method         string
	Confidence     float64
	ResolvedAt     time.Time
}

// LoRAAdapter is a stored personalization adapter.
type LoRAAdapter struct {
	UserID             string
	AdapterName        string
	Version            int
	Weights            []byte
	SizeBytes          int64
	TrainingIterations int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// WatchlistEntry is one OR-Set element of a user's watchlist.
type WatchlistEntry struct {
	UserID             string
	ContentID          string
	UniqueTag          string
	TimestampPhysical  int64
	TimestampLogical   int32
	DeviceID           string
	IsRemoved          bool
}

// ProgressEntry is the LWW-registered playback position for one title.
type ProgressEntry struct {
	UserID            string
	ContentID         string
	PositionSeconds   float64
	DurationSeconds   float64
	TimestampPhysical int64
	TimestampLogical  int32
	DeviceID          string
}

// Device is a registered sync endpoint for a user, carrying the slice of
// its capability set the remote command router needs to validate
// against (spec.md §4.G): whether it accepts remote commands at all,
// and whether it may issue a CastTo as the source device.
type Device struct {
	UserID             string
	DeviceID           string
	DeviceName         string
	Platform           string
	LastSeen           time.Time
	IsOnline           bool
	PushToken          string
	RemoteControllable bool
	CanCast            bool
}

// WatchHistoryEntry is a denormalized playback record used by
// personalization training, the collaborative fallback and ResumePosition.
type WatchHistoryEntry struct {
	UserID          string
	ContentID       string
	PositionSeconds float64
	DurationSeconds float64
	UpdatedAt       time.Time
}

// SearchEvent is one logged search request.
type SearchEvent struct {
	ID          int64
	Query       string
	UserID      string
	ResultCount int
	LatencyMS   int
	FiltersJSON string
	CreatedAt   time.Time
}

// SearchClick is one logged click-through on a search result.
type SearchClick struct {
	ID            int64
	SearchEventID int64
	ContentID     string
	Position      int
	ClickedAt     time.Time
}
