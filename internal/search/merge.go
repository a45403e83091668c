// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"sort"
	"strings"
	"time"

	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/vectorstore"
)

// mergeCandidates unions the vector and lexical result sets into one
// per-content-id candidate map, recording each strategy's rank (1-based,
// in the order each strategy returned its hits) for the fusion step.
func mergeCandidates(vecHits []vectorstore.SearchResult, lexHits []store.SearchHit) map[string]*candidate {
	cands := make(map[string]*candidate)

	for i, v := range vecHits {
		c := getOrCreate(cands, v.ID)
		c.vectorRank = i + 1
		c.hasVector = true
		applyVectorPayload(c, v.Payload)
	}

	for i, h := range lexHits {
		c := getOrCreate(cands, h.ContentID)
		c.keywordRank = i + 1
		c.hasKeyword = true
		c.hit.Title = h.CanonicalTitle
		c.hit.ContentType = h.ContentType
		c.hit.ReleaseYear = h.ReleaseYear
		c.hit.QualityScore = h.QualityScore
		c.hit.Genres = h.Genres
		c.hit.Platforms = h.Platforms
	}

	return cands
}

func getOrCreate(cands map[string]*candidate, id string) *candidate {
	if c, ok := cands[id]; ok {
		return c
	}
	c := &candidate{contentID: id, hit: Hit{ContentID: id}, updatedAt: time.Now()}
	cands[id] = c
	return c
}

func applyVectorPayload(c *candidate, payload map[string]any) {
	if title, ok := payload["title"].(string); ok && c.hit.Title == "" {
		c.hit.Title = title
	}
	if ct, ok := payload["content_type"].(string); ok && c.hit.ContentType == "" {
		c.hit.ContentType = ct
	}
}

func sortHitsByScore(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ContentID < hits[j].ContentID
	})
}

// normalizeQuery folds a query string to the key popular_searches groups by.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
