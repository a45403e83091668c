// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models holds the shared domain types for the discovery and
// cross-device-sync core: canonical content, external-id mappings, LoRA
// adapters, watchlist/playback CRDT state, device records, and ranking
// configuration.
package models

import "time"

// ContentType is the canonical content-type enumeration.
type ContentType string

const (
	ContentMovie       ContentType = "movie"
	ContentSeries      ContentType = "series"
	ContentEpisode     ContentType = "episode"
	ContentShort       ContentType = "short"
	ContentDocumentary ContentType = "documentary"
)

// ExternalIDType enumerates the external-id families a canonical row may carry.
type ExternalIDType string

const (
	ExternalEIDR     ExternalIDType = "eidr"
	ExternalIMDb     ExternalIDType = "imdb"
	ExternalTMDb     ExternalIDType = "tmdb"
	ExternalTVDB     ExternalIDType = "tvdb"
	ExternalGracenote ExternalIDType = "gracenote"
)

// Availability describes one per-region availability window on one platform.
type Availability struct {
	Platform  string    `json:"platform"`
	Region    string    `json:"region"`
	Kind      string    `json:"kind"` // subscription, purchase, rental
	Currency  string    `json:"currency,omitempty"`
	Price     float64   `json:"price,omitempty"`
	From      time.Time `json:"from"`
	Until     time.Time `json:"until"`
}

// Content is the canonical representation of a single real-world title.
//
// Invariants: one row per real title; external-id columns unique where
// present; genres belong to the canonical taxonomy after mapping;
// Availability.Until > Availability.From; embedding dimension constant
// within a deployment.
type Content struct {
	ID          string            `json:"id"` // UUID
	Title       string            `json:"title"`
	Overview    string            `json:"overview"`
	Type        ContentType       `json:"content_type"`
	Year        int               `json:"year"`
	RuntimeMin  int               `json:"runtime_minutes"`
	Genres      []string          `json:"genres"`
	RatingCode  string            `json:"rating_code"`
	UserRating  float64           `json:"user_rating"`
	Images      []string          `json:"images"`
	Availability []Availability   `json:"availability"`
	ExternalIDs map[ExternalIDType]string `json:"external_ids"`
	PlatformContentID map[string]string   `json:"platform_content_id"` // platform -> id
	QualityScore float64          `json:"quality_score"`
	Embedding   []float32         `json:"embedding,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	UnavailableAt *time.Time      `json:"unavailable_at,omitempty"`
}

// Stale reports whether the embedding should be regenerated.
func (c *Content) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(c.UpdatedAt) > threshold
}

// ExternalIDMapping is the (external_id, id_type) -> canonical_id row.
//
// Unique on (external_id, id_type). Conflict-resolution rule: keep the
// mapping with the highest confidence seen for the pair (see DESIGN.md
// open-question #3 — this widens spec.md's "first seen" prose).
type ExternalIDMapping struct {
	ExternalID  string         `json:"external_id"`
	IDType      ExternalIDType `json:"id_type"`
	CanonicalID string         `json:"canonical_id"`
	Confidence  float64        `json:"confidence"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ResolutionMethod is the strategy that produced a resolver match.
type ResolutionMethod string

const (
	MethodEIDRExact     ResolutionMethod = "eidr-exact"
	MethodExternalIMDb  ResolutionMethod = "external-id(imdb)"
	MethodExternalTMDb  ResolutionMethod = "external-id(tmdb)"
	MethodFuzzyTitleYear ResolutionMethod = "fuzzy-title-year"
	MethodEmbedding     ResolutionMethod = "embedding-similarity"
	MethodNone          ResolutionMethod = "none"
)
