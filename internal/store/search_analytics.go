// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/streamforge/discovery/internal/metrics"
)

// RecordSearchEvent logs one search request and rolls the normalized query
// into popular_searches. It returns the new event's id for click attribution.
func (s *Store) RecordSearchEvent(ctx context.Context, e SearchEvent, normalizedQuery string) (int64, error) {
	start := time.Now()
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO search_events (query, user_id, result_count, latency_ms, filters_json)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		e.Query, nullableString(e.UserID), e.ResultCount, e.LatencyMS, e.FiltersJSON)

	var id int64
	if err := row.Scan(&id); err != nil {
		metrics.RecordStoreQuery("insert", "search_events", time.Since(start), err)
		return 0, fmt.Errorf("insert search event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO popular_searches (query_normalized, count, last_seen)
		VALUES (?, 1, current_timestamp)
		ON CONFLICT (query_normalized) DO UPDATE SET
			count = popular_searches.count + 1,
			last_seen = current_timestamp`,
		normalizedQuery); err != nil {
		metrics.RecordStoreQuery("upsert", "popular_searches", time.Since(start), err)
		return 0, fmt.Errorf("upsert popular search: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordStoreQuery("insert", "search_events", time.Since(start), nil)
	return id, nil
}

// RecordSearchClick logs a click-through against a prior search event.
func (s *Store) RecordSearchClick(ctx context.Context, c SearchClick) error {
	start := time.Now()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO search_clicks (search_event_id, content_id, position)
		VALUES (?, ?, ?)`,
		c.SearchEventID, c.ContentID, c.Position)
	metrics.RecordStoreQuery("insert", "search_clicks", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("record search click: %w", err)
	}
	return nil
}

// TopPopularSearches returns the most frequent normalized queries, ties
// broken by most recently seen.
func (s *Store) TopPopularSearches(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT query_normalized FROM popular_searches
		ORDER BY count DESC, last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list popular searches: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan popular search: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
