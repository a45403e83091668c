// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"sort"
	"time"
)

// candidate is the fusable unit: a content id plus whatever per-strategy
// ranks it earned. A missing rank (zero value with present=false) means
// that strategy never returned the candidate and contributes 0.
type candidate struct {
	contentID string
	hit       Hit
	updatedAt time.Time

	vectorRank    int
	hasVector     bool
	keywordRank   int
	hasKeyword    bool
}

// fuse computes RRF scores over up to four strategies — vector rank,
// keyword rank, and two synthetic rank-strategies derived by sorting the
// union of candidates by quality_score and by recency — then returns hits
// sorted by score descending, tie-broken by canonical id for determinism.
func fuse(cands map[string]*candidate, weights RankingWeights) []Hit {
	if len(cands) == 0 {
		return nil
	}
	k := weights.RRFK
	if k < 1 {
		k = 60
	}

	ids := make([]string, 0, len(cands))
	for id := range cands {
		ids = append(ids, id)
	}

	qualityRank := rankBy(ids, cands, func(c *candidate) float64 { return c.hit.QualityScore })
	freshnessRank := rankBy(ids, cands, func(c *candidate) float64 { return float64(c.updatedAt.Unix()) })

	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		c := cands[id]
		var s float64
		if c.hasVector {
			s += weights.Vector / float64(k+c.vectorRank)
		}
		if c.hasKeyword {
			s += weights.Keyword / float64(k+c.keywordRank)
		}
		s += weights.Quality / float64(k+qualityRank[id])
		s += weights.Freshness / float64(k+freshnessRank[id])
		scores[id] = s
	}

	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		h := cands[id].hit
		h.Score = scores[id]
		hits = append(hits, h)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ContentID < hits[j].ContentID
	})
	return hits
}

// rankBy returns each candidate's 1-based rank when sorted by key(c)
// descending, ties broken by content id for determinism.
func rankBy(ids []string, cands map[string]*candidate, key func(*candidate) float64) map[string]int {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := key(cands[sorted[i]]), key(cands[sorted[j]])
		if ki != kj {
			return ki > kj
		}
		return sorted[i] < sorted[j]
	})

	ranks := make(map[string]int, len(sorted))
	for i, id := range sorted {
		ranks[id] = i + 1
	}
	return ranks
}
