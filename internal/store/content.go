// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/streamforge/discovery/internal/apierr"
	"github.com/streamforge/discovery/internal/metrics"
)

// UpsertContent inserts or updates the canonical content row and its
// child rows (external ids, platform ids, genres, ratings) in a single
// transaction. It is the write path ingestion schedulers batch through.
func (s *Store) UpsertContent(ctx context.Context, c Content) error {
	start := time.Now()
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreQuery("upsert", "content", time.Since(start), err)
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content (id, canonical_title, release_year, content_type, runtime_minutes, synopsis, quality_score, popularity_score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, current_timestamp)
		ON CONFLICT (id) DO UPDATE SET
			canonical_title = excluded.canonical_title,
			release_year = excluded.release_year,
			content_type = excluded.content_type,
			runtime_minutes = excluded.runtime_minutes,
			synopsis = excluded.synopsis,
			quality_score = excluded.quality_score,
			popularity_score = excluded.popularity_score,
			updated_at = current_timestamp`,
		c.ID, c.CanonicalTitle, c.ReleaseYear, c.ContentType, c.RuntimeMinutes, c.Synopsis, c.QualityScore, c.PopularityScore)
	if err != nil {
		metrics.RecordStoreQuery("upsert", "content", time.Since(start), err)
		return fmt.Errorf("upsert content: %w", err)
	}

	for namespace, id := range c.ExternalIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO external_ids (content_id, namespace, external_id) VALUES (?, ?, ?)
			ON CONFLICT (content_id, namespace) DO UPDATE SET external_id = excluded.external_id`,
			c.ID, namespace, id); err != nil {
			metrics.RecordStoreQuery("upsert", "external_ids", time.Since(start), err)
			return fmt.Errorf("upsert external_ids: %w", err)
		}
	}

	for platform, id := range c.PlatformIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO platform_ids (content_id, platform, platform_content_id) VALUES (?, ?, ?)
			ON CONFLICT (content_id, platform) DO UPDATE SET platform_content_id = excluded.platform_content_id`,
			c.ID, platform, id); err != nil {
			metrics.RecordStoreQuery("upsert", "platform_ids", time.Since(start), err)
			return fmt.Errorf("upsert platform_ids: %w", err)
		}
	}

	for _, genre := range c.Genres {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_genres (content_id, genre) VALUES (?, ?)
			ON CONFLICT (content_id, genre) DO NOTHING`,
			c.ID, genre); err != nil {
			metrics.RecordStoreQuery("upsert", "content_genres", time.Since(start), err)
			return fmt.Errorf("upsert content_genres: %w", err)
		}
	}

	for system, rating := range c.Ratings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_ratings (content_id, system, rating) VALUES (?, ?, ?)
			ON CONFLICT (content_id, system) DO UPDATE SET rating = excluded.rating`,
			c.ID, system, rating); err != nil {
			metrics.RecordStoreQuery("upsert", "content_ratings", time.Since(start), err)
			return fmt.Errorf("upsert content_ratings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreQuery("upsert", "content", time.Since(start), err)
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordStoreQuery("upsert", "content", time.Since(start), nil)
	return nil
}

// GetContent fetches a content row by id, including its genres.
func (s *Store) GetContent(ctx context.Context, id string) (*Content, error) {
	start := time.Now()
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, canonical_title, release_year, content_type, runtime_minutes, synopsis, quality_score, popularity_score, created_at, updated_at
		FROM content WHERE id = ?`, id)

	var c Content
	err := row.Scan(&c.ID, &c.CanonicalTitle, &c.ReleaseYear, &c.ContentType, &c.RuntimeMinutes, &c.Synopsis, &c.QualityScore, &c.PopularityScore, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		metrics.RecordStoreQuery("select", "content", time.Since(start), nil)
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreQuery("select", "content", time.Since(start), err)
		return nil, fmt.Errorf("get content: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT genre FROM content_genres WHERE content_id = ?`, id)
	if err != nil {
		metrics.RecordStoreQuery("select", "content_genres", time.Since(start), err)
		return nil, fmt.Errorf("get genres: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		c.Genres = append(c.Genres, g)
	}

	metrics.RecordStoreQuery("select", "content", time.Since(start), nil)
	return &c, nil
}

// FindByExternalID resolves a content id from an external namespace/id pair
// (the exact-match first step of entity resolution).
func (s *Store) FindByExternalID(ctx context.Context, namespace, externalID string) (string, error) {
	start := time.Now()
	var contentID string
	err := s.conn.QueryRowContext(ctx,
		`SELECT content_id FROM external_ids WHERE namespace = ? AND external_id = ?`,
		namespace, externalID).Scan(&contentID)
	if err == sql.ErrNoRows {
		metrics.RecordStoreQuery("select", "external_ids", time.Since(start), nil)
		return "", apierr.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreQuery("select", "external_ids", time.Since(start), err)
		return "", fmt.Errorf("find by external id: %w", err)
	}
	metrics.RecordStoreQuery("select", "external_ids", time.Since(start), nil)
	return contentID, nil
}

// FindByPlatformID resolves a content id from a platform/platform-content-id
// pair, used by the availability-sync scheduler to avoid re-running entity
// resolution for titles it has already ingested once.
func (s *Store) FindByPlatformID(ctx context.Context, platform, platformContentID string) (string, error) {
	start := time.Now()
	var contentID string
	err := s.conn.QueryRowContext(ctx,
		`SELECT content_id FROM platform_ids WHERE platform = ? AND platform_content_id = ?`,
		platform, platformContentID).Scan(&contentID)
	if err == sql.ErrNoRows {
		metrics.RecordStoreQuery("select", "platform_ids", time.Since(start), nil)
		return "", apierr.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreQuery("select", "platform_ids", time.Since(start), err)
		return "", fmt.Errorf("find by platform id: %w", err)
	}
	metrics.RecordStoreQuery("select", "platform_ids", time.Since(start), nil)
	return contentID, nil
}

// UpsertAvailability records one platform/region availability window.
func (s *Store) UpsertAvailability(ctx context.Context, a Availability) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO platform_availability (content_id, platform, region, offer_type, price_cents, deep_link, available_from, available_until, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, current_timestamp)
		ON CONFLICT (content_id, platform, region, offer_type) DO UPDATE SET
			price_cents = excluded.price_cents,
			deep_link = excluded.deep_link,
			available_from = excluded.available_from,
			available_until = excluded.available_until,
			last_seen = current_timestamp`,
		a.ContentID, a.Platform, a.Region, a.OfferType, a.PriceCents, a.DeepLink, a.AvailableFrom, a.AvailableUntil)
	metrics.RecordStoreQuery("upsert", "platform_availability", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// ExpiringAvailability returns availability rows whose window closes within
// the given horizon, for the expiring-content scheduler.
func (s *Store) ExpiringAvailability(ctx context.Context, within time.Duration) ([]Availability, error) {
	start := time.Now()
	deadline := time.Now().Add(within)
	rows, err := s.conn.QueryContext(ctx, `
		SELECT content_id, platform, region, offer_type, price_cents, deep_link, available_from, available_until, last_seen
		FROM platform_availability
		WHERE available_until IS NOT NULL AND available_until <= ?
		ORDER BY available_until ASC`, deadline)
	if err != nil {
		metrics.RecordStoreQuery("select", "platform_availability", time.Since(start), err)
		return nil, fmt.Errorf("query expiring availability: %w", err)
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.ContentID, &a.Platform, &a.Region, &a.OfferType, &a.PriceCents, &a.DeepLink, &a.AvailableFrom, &a.AvailableUntil, &a.LastSeen); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		out = append(out, a)
	}
	metrics.RecordStoreQuery("select", "platform_availability", time.Since(start), nil)
	return out, rows.Err()
}

// ListStaleContent returns content rows not updated since the given
// threshold, the metadata-enrichment scheduler's work queue.
func (s *Store) ListStaleContent(ctx context.Context, olderThan time.Time, limit int) ([]Content, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, canonical_title, release_year, content_type, runtime_minutes, synopsis, quality_score, popularity_score, created_at, updated_at
		FROM content WHERE updated_at < ? ORDER BY updated_at ASC LIMIT ?`, olderThan, limit)
	if err != nil {
		metrics.RecordStoreQuery("select", "content", time.Since(start), err)
		return nil, fmt.Errorf("list stale content: %w", err)
	}
	defer rows.Close()

	var out []Content
	for rows.Next() {
		var c Content
		if err := rows.Scan(&c.ID, &c.CanonicalTitle, &c.ReleaseYear, &c.ContentType, &c.RuntimeMinutes, &c.Synopsis, &c.QualityScore, &c.PopularityScore, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stale content: %w", err)
		}
		out = append(out, c)
	}
	metrics.RecordStoreQuery("select", "content", time.Since(start), nil)
	return out, rows.Err()
}

// ListAllGenres returns the distinct set of genres seen across all content.
// cmd/server builds the personalization Ranker's feature taxonomy from it
// at startup; the training scheduler builds its own taxonomy from the
// genres of watched titles on each run.
func (s *Store) ListAllGenres(ctx context.Context) ([]string, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT genre FROM content_genres ORDER BY genre`)
	if err != nil {
		metrics.RecordStoreQuery("select", "content_genres", time.Since(start), err)
		return nil, fmt.Errorf("list all genres: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		out = append(out, g)
	}
	metrics.RecordStoreQuery("select", "content_genres", time.Since(start), nil)
	return out, rows.Err()
}

// UpsertEntityMapping records the outcome of one entity-resolution attempt.
// A conflicting row only updates when the new resolution's confidence is at
// least as high as the stored one ("keep max confidence, else keep
// latest") — a later, lower-confidence rerun (e.g. a fuzzy title/year
// fallback) must never downgrade an existing exact-match mapping.
func (s *Store) UpsertEntityMapping(ctx context.Context, m EntityMapping) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO entity_mappings (content_id, source, source_record_id, method, confidence, resolved_at)
		VALUES (?, ?, ?, ?, ?, current_timestamp)
		ON CONFLICT (source, source_record_id) DO UPDATE SET
			content_id = CASE WHEN excluded.confidence >= entity_mappings.confidence THEN excluded.content_id ELSE entity_mappings.content_id END,
			method = CASE WHEN excluded.confidence >= entity_mappings.confidence THEN excluded.method ELSE entity_mappings.method END,
			confidence = CASE WHEN excluded.confidence >= entity_mappings.confidence THEN excluded.confidence ELSE entity_mappings.confidence END,
			resolved_at = CASE WHEN excluded.confidence >= entity_mappings.confidence THEN current_timestamp ELSE entity_mappings.resolved_at END`,
		m.ContentID, m.Source, m.SourceRecordID, m.Method, m.Confidence)
	metrics.RecordStoreQuery("upsert", "entity_mappings", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert entity mapping: %w", err)
	}
	return nil
}
