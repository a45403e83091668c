// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/vectorstore"
)

// ExpiringStore is the subset of internal/store the expiring-content
// scheduler needs.
type ExpiringStore interface {
	ExpiringAvailability(ctx context.Context, within time.Duration) ([]store.Availability, error)
}

var _ ExpiringStore = (*store.Store)(nil)

// Publisher is the subset of internal/broker the expiring-content
// scheduler needs to announce catalog changes.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

const expiringWindow = 7 * 24 * time.Hour

// ExpiringContentScheduler reports titles leaving a platform within 7 days
// by publishing one content-change notification per expiring row.
type ExpiringContentScheduler struct {
	interval  time.Duration
	store     ExpiringStore
	publisher Publisher
	topic     string
}

// NewExpiringContentScheduler builds the expiring-content service.
func NewExpiringContentScheduler(interval time.Duration, s ExpiringStore, publisher Publisher, topic string) *ExpiringContentScheduler {
	return &ExpiringContentScheduler{interval: interval, store: s, publisher: publisher, topic: topic}
}

// Serve implements suture.Service.
func (e *ExpiringContentScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *ExpiringContentScheduler) tick(ctx context.Context) {
	start := time.Now()
	expiring, err := e.store.ExpiringAvailability(ctx, expiringWindow)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("expiring_content", "store", "query_error").Inc()
		return
	}

	for _, av := range expiring {
		payload := fmt.Sprintf(`{"content_id":%q,"platform":%q,"region":%q,"available_until":%q}`,
			av.ContentID, av.Platform, av.Region, av.AvailableUntil.Format(time.RFC3339))
		msg := message.NewMessage(uuid.NewString(), []byte(payload))
		if err := e.publisher.Publish(ctx, e.topic, msg); err != nil {
			metrics.IngestErrors.WithLabelValues("expiring_content", "broker", "publish_error").Inc()
		}
	}

	metrics.IngestItemsProcessed.WithLabelValues("expiring_content", "all").Add(float64(len(expiring)))
	metrics.RecordIngestBatch("expiring_content", time.Since(start))
}

// Embedder regenerates an embedding and quality score for one content row,
// typically backed by an external embedding model call.
type Embedder interface {
	Embed(ctx context.Context, title, synopsis string) (embedding []float32, qualityScore float64, err error)
}

// StaleStore is the subset of internal/store the metadata-enrichment
// scheduler needs.
type StaleStore interface {
	ListStaleContent(ctx context.Context, olderThan time.Time, limit int) ([]store.Content, error)
	UpsertContent(ctx context.Context, c store.Content) error
}

var _ StaleStore = (*store.Store)(nil)

// MetadataEnrichmentScheduler regenerates embeddings and quality scores for
// rows not updated within the staleness threshold (default 24h).
type MetadataEnrichmentScheduler struct {
	interval  time.Duration
	staleness time.Duration
	batchSize int
	store     StaleStore
	vectors   VectorStore
	embedder  Embedder
}

// NewMetadataEnrichmentScheduler builds the metadata-enrichment service.
func NewMetadataEnrichmentScheduler(interval, staleness time.Duration, batchSize int, s StaleStore, v VectorStore, embedder Embedder) *MetadataEnrichmentScheduler {
	return &MetadataEnrichmentScheduler{
		interval:  interval,
		staleness: staleness,
		batchSize: batchSize,
		store:     s,
		vectors:   v,
		embedder:  embedder,
	}
}

// Serve implements suture.Service.
func (m *MetadataEnrichmentScheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *MetadataEnrichmentScheduler) tick(ctx context.Context) {
	start := time.Now()
	cutoff := time.Now().Add(-m.staleness)

	stale, err := m.store.ListStaleContent(ctx, cutoff, m.batchSize)
	if err != nil {
		metrics.IngestErrors.WithLabelValues("metadata_enrichment", "store", "query_error").Inc()
		return
	}

	points := make([]vectorstore.Point, 0, len(stale))
	for _, c := range stale {
		embedding, quality, err := m.embedder.Embed(ctx, c.CanonicalTitle, c.Synopsis)
		if err != nil {
			metrics.IngestErrors.WithLabelValues("metadata_enrichment", "embedder", "embed_error").Inc()
			continue
		}

		c.QualityScore = quality
		if err := m.store.UpsertContent(ctx, c); err != nil {
			metrics.IngestErrors.WithLabelValues("metadata_enrichment", "store", "upsert_error").Inc()
			continue
		}
		metrics.IngestQualityScore.Observe(quality)

		points = append(points, vectorstore.Point{
			ID:      c.ID,
			Vector:  embedding,
			Payload: map[string]any{"title": c.CanonicalTitle, "content_type": c.ContentType},
		})
	}

	if len(points) > 0 {
		if err := m.vectors.UpsertPoints(ctx, m.vectors.ContentCollection(), points); err != nil {
			metrics.IngestErrors.WithLabelValues("metadata_enrichment", "vectorstore", "upsert_error").Inc()
		}
	}

	metrics.IngestItemsProcessed.WithLabelValues("metadata_enrichment", "all").Add(float64(len(stale)))
	metrics.RecordIngestBatch("metadata_enrichment", time.Since(start))
}
