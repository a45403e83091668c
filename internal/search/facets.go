// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"fmt"
	"sort"
)

// computeFacets tallies the full ranked list (pre-pagination) across
// genres, platforms, release year, and rating band, per spec.md §4.C's
// invariant that facet counts reflect totals over what the client sees,
// not just the paginated window.
func computeFacets(hits []Hit) Facets {
	genres := map[string]int{}
	platforms := map[string]int{}
	years := map[string]int{}
	bands := map[string]int{}

	for _, h := range hits {
		for _, g := range h.Genres {
			genres[g]++
		}
		for _, p := range h.Platforms {
			platforms[p]++
		}
		if h.ReleaseYear > 0 {
			years[fmt.Sprintf("%d", h.ReleaseYear)]++
		}
		bands[ratingBand(h.QualityScore)]++
	}

	return Facets{
		Genres:      sortedCounts(genres),
		Platforms:   sortedCounts(platforms),
		ReleaseYear: sortedCounts(years),
		RatingBand:  sortedCounts(bands),
	}
}

func ratingBand(quality float64) string {
	switch {
	case quality >= 0.8:
		return "excellent"
	case quality >= 0.6:
		return "good"
	case quality >= 0.4:
		return "mixed"
	default:
		return "poor"
	}
}

func sortedCounts(m map[string]int) []FacetCount {
	out := make([]FacetCount, 0, len(m))
	for v, n := range m {
		out = append(out, FacetCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
