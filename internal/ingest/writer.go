// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/streamforge/discovery/internal/entity"
	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/vectorstore"
)

// Store is the subset of internal/store the ingestion schedulers need.
type Store interface {
	UpsertContent(ctx context.Context, c store.Content) error
	UpsertAvailability(ctx context.Context, a store.Availability) error
	FindByPlatformID(ctx context.Context, platform, platformContentID string) (string, error)
}

var _ Store = (*store.Store)(nil)

func availabilityRow(contentID, platform string, av RawAvailability) store.Availability {
	return store.Availability{
		ContentID:      contentID,
		Platform:       platform,
		Region:         av.Region,
		OfferType:      av.OfferType,
		PriceCents:     av.PriceCents,
		DeepLink:       av.DeepLink,
		AvailableFrom:  av.AvailableFrom,
		AvailableUntil: av.AvailableUntil,
	}
}

// VectorStore is the subset of internal/vectorstore a writer needs.
type VectorStore interface {
	UpsertPoints(ctx context.Context, collection string, points []vectorstore.Point) error
	ContentCollection() string
}

var _ VectorStore = (*vectorstore.Store)(nil)

// Writer resolves raw records to canonical content and persists them
// through the store and vector store.
type Writer struct {
	store    Store
	vectors  VectorStore
	resolver *entity.Resolver
	source   string
}

// NewWriter builds a Writer for one source's ingestion runs.
func NewWriter(s Store, v VectorStore, r *entity.Resolver, sourceName string) *Writer {
	return &Writer{store: s, vectors: v, resolver: r, source: sourceName}
}

// WriteBatch resolves and upserts a batch of raw records, flushing their
// embeddings to the vector store in one call.
func (w *Writer) WriteBatch(ctx context.Context, records []RawRecord, region string, known []entity.KnownEntity) error {
	points := make([]vectorstore.Point, 0, len(records))

	for _, rec := range records {
		contentID, err := w.resolveOrMint(ctx, rec, known)
		if err != nil {
			return fmt.Errorf("resolve record %q: %w", rec.PlatformContentID, err)
		}

		if err := w.store.UpsertContent(ctx, toStoreContent(contentID, rec)); err != nil {
			return fmt.Errorf("upsert content %s: %w", contentID, err)
		}

		for _, a := range rec.Availability {
			if err := w.store.UpsertAvailability(ctx, store.Availability{
				ContentID:      contentID,
				Platform:       w.source,
				Region:         a.Region,
				OfferType:      a.OfferType,
				PriceCents:     a.PriceCents,
				DeepLink:       a.DeepLink,
				AvailableFrom:  a.AvailableFrom,
				AvailableUntil: a.AvailableUntil,
			}); err != nil {
				return fmt.Errorf("upsert availability %s: %w", contentID, err)
			}
		}

		if len(rec.Embedding) > 0 {
			points = append(points, vectorstore.Point{
				ID:     contentID,
				Vector: rec.Embedding,
				Payload: map[string]any{
					"title":        rec.Title,
					"content_type": rec.ContentType,
					"region":       region,
				},
			})
		}
	}

	if len(points) > 0 {
		if err := w.vectors.UpsertPoints(ctx, w.vectors.ContentCollection(), points); err != nil {
			return fmt.Errorf("flush content vectors: %w", err)
		}
	}

	return nil
}

func (w *Writer) resolveOrMint(ctx context.Context, rec RawRecord, known []entity.KnownEntity) (string, error) {
	candidate := entity.Candidate{
		SourceRecordID: rec.PlatformContentID,
		EIDR:           rec.EIDR,
		IMDbID:         rec.IMDbID,
		TMDbID:         rec.TMDbID,
		Title:          rec.Title,
		Year:           rec.Year,
		Embedding:      rec.Embedding,
	}

	res, err := w.resolver.Resolve(ctx, candidate, known)
	if err != nil {
		return "", err
	}
	if res.Matched() {
		return res.CanonicalID, nil
	}
	return uuid.NewString(), nil
}

func toStoreContent(contentID string, rec RawRecord) store.Content {
	c := store.Content{
		ID:             contentID,
		CanonicalTitle: rec.Title,
		ReleaseYear:    rec.Year,
		ContentType:    rec.ContentType,
		RuntimeMinutes: rec.RuntimeMinutes,
		Synopsis:       rec.Synopsis,
		QualityScore:   rec.QualityScore,
		Genres:         rec.Genres,
		ExternalIDs:    map[string]string{},
		PlatformIDs:    map[string]string{},
		Ratings:        map[string]string{},
	}
	if rec.EIDR != "" {
		c.ExternalIDs["eidr"] = rec.EIDR
	}
	if rec.IMDbID != "" {
		c.ExternalIDs["imdb"] = rec.IMDbID
	}
	if rec.TMDbID != "" {
		c.ExternalIDs["tmdb"] = rec.TMDbID
	}
	if rec.RatingSystem != "" {
		c.Ratings[rec.RatingSystem] = rec.Rating
	}
	return c
}
