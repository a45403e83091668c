// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest runs the four catalog schedulers (catalog refresh,
// availability sync, expiring content, metadata enrichment) that keep the
// canonical datastore and vector store in sync with external sources.
package ingest

import (
	"context"
	"time"
)

// RawRecord is one unnormalized record returned by a Source, carrying
// whatever identifying fields that source can supply — enough for
// internal/entity's resolver to attempt a match.
type RawRecord struct {
	PlatformContentID string
	EIDR              string
	IMDbID            string
	TMDbID            string
	Title             string
	Year              int
	ContentType       string
	RuntimeMinutes    int
	Synopsis          string
	Genres            []string
	RatingSystem      string
	Rating            string
	Embedding         []float32
	QualityScore      float64
	Availability      []RawAvailability
}

// RawAvailability is one per-region offer a Source reports for a record.
type RawAvailability struct {
	Region         string
	OfferType      string
	PriceCents     int
	DeepLink       string
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
}

// Source is the per-platform normalizer interface. Each source (TMDb,
// TVDB, Gracenote, a platform catalog feed, ...) implements this and is
// opaque to the rest of the ingestion pipeline.
type Source interface {
	// Name is the stable source identifier used in metrics and entity
	// mapping rows (e.g. "tmdb").
	Name() string

	// FetchCatalogDelta returns every record changed in region since the
	// given timestamp (zero value means "full pull").
	FetchCatalogDelta(ctx context.Context, since time.Time, region string) ([]RawRecord, error)
}

// Registry holds the configured sources for a deployment, keyed by name.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry from a list of sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// All returns every registered source.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out
}

// Get returns the named source, if registered.
func (r *Registry) Get(name string) (Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}
