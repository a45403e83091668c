// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/streamforge/discovery/internal/metrics"
)

// SearchFilters narrows the lexical candidate set pushed down to SQL.
type SearchFilters struct {
	Genres    []string
	Platforms []string
	YearMin   int
	YearMax   int
}

// SearchHit is one lexical-match candidate with the metadata the fusion and
// facet-tally steps need, avoiding a per-hit round trip back to the store.
type SearchHit struct {
	ContentID      string
	RawScore       float64
	CanonicalTitle string
	ContentType    string
	ReleaseYear    int
	QualityScore   float64
	Genres         []string
	Platforms      []string
}

// SearchByText runs a case-insensitive LIKE match of the whole query string
// over title and synopsis, scoring a title match 2, a synopsis match 1, plus
// quality_score, and pushing the cheap filters (genre, platform, year range)
// down into the query.
func (s *Store) SearchByText(ctx context.Context, query string, filters SearchFilters, limit int) ([]SearchHit, error) {
	start := time.Now()

	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	args := []any{like, like}

	q := `
		SELECT c.id, c.canonical_title, c.content_type, c.release_year, c.quality_score,
			CASE WHEN lower(c.canonical_title) LIKE ? THEN 2.0 ELSE 0.0 END +
			CASE WHEN lower(c.synopsis) LIKE ? THEN 1.0 ELSE 0.0 END + c.quality_score AS raw_score
		FROM content c
		WHERE (lower(c.canonical_title) LIKE ? OR lower(c.synopsis) LIKE ?)`
	args = append(args, like, like)

	if filters.YearMin > 0 {
		q += " AND c.release_year >= ?"
		args = append(args, filters.YearMin)
	}
	if filters.YearMax > 0 {
		q += " AND c.release_year <= ?"
		args = append(args, filters.YearMax)
	}
	if len(filters.Genres) > 0 {
		q += fmt.Sprintf(" AND c.id IN (SELECT content_id FROM content_genres WHERE genre IN (%s))", placeholders(len(filters.Genres)))
		for _, g := range filters.Genres {
			args = append(args, g)
		}
	}
	if len(filters.Platforms) > 0 {
		q += fmt.Sprintf(" AND c.id IN (SELECT content_id FROM platform_availability WHERE platform IN (%s))", placeholders(len(filters.Platforms)))
		for _, p := range filters.Platforms {
			args = append(args, p)
		}
	}
	q += " ORDER BY raw_score DESC, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordStoreQuery("select", "content_search", time.Since(start), err)
		return nil, fmt.Errorf("search by text: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	var ids []string
	byID := make(map[string]*SearchHit)
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ContentID, &h.CanonicalTitle, &h.ContentType, &h.ReleaseYear, &h.QualityScore, &h.RawScore); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
		ids = append(ids, h.ContentID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range hits {
		byID[hits[i].ContentID] = &hits[i]
	}

	if len(ids) > 0 {
		if err := s.attachGenresAndPlatforms(ctx, ids, byID); err != nil {
			return nil, err
		}
	}

	metrics.RecordStoreQuery("select", "content_search", time.Since(start), nil)
	return hits, nil
}

func (s *Store) attachGenresAndPlatforms(ctx context.Context, ids []string, byID map[string]*SearchHit) error {
	ph := placeholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	grows, err := s.conn.QueryContext(ctx, fmt.Sprintf("SELECT content_id, genre FROM content_genres WHERE content_id IN (%s)", ph), args...)
	if err != nil {
		return fmt.Errorf("fetch genres for search hits: %w", err)
	}
	defer grows.Close()
	for grows.Next() {
		var contentID, genre string
		if err := grows.Scan(&contentID, &genre); err != nil {
			return err
		}
		if h, ok := byID[contentID]; ok {
			h.Genres = append(h.Genres, genre)
		}
	}
	if err := grows.Err(); err != nil {
		return err
	}

	prows, err := s.conn.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT content_id, platform FROM platform_availability WHERE content_id IN (%s)", ph), args...)
	if err != nil {
		return fmt.Errorf("fetch platforms for search hits: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var contentID, platform string
		if err := prows.Scan(&contentID, &platform); err != nil {
			return err
		}
		if h, ok := byID[contentID]; ok {
			h.Platforms = append(h.Platforms, platform)
		}
	}
	return prows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	return b.String()
}
