// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import "sort"

// Neighbor is one user found similar to the target during collaborative
// fallback, with the cosine similarity that qualified them.
type Neighbor struct {
	UserID     string
	Similarity float64
}

// NearestNeighbors ranks candidate users by taste-vector cosine similarity
// to target, keeping only those at or above minSimilarity and returning at
// most topK, per spec.md §4.D's collaborative-fallback threshold (default
// 0.7).
func NearestNeighbors(target []float64, candidates map[string][]float64, topK int, minSimilarity float64) []Neighbor {
	neighbors := make([]Neighbor, 0, len(candidates))
	for userID, vec := range candidates {
		sim := cosineSimilarity(target, vec)
		if sim >= minSimilarity {
			neighbors = append(neighbors, Neighbor{UserID: userID, Similarity: sim})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].UserID < neighbors[j].UserID
	})
	if topK > 0 && len(neighbors) > topK {
		neighbors = neighbors[:topK]
	}
	return neighbors
}

// AggregateNeighborRating combines neighbor ratings for one content item,
// weighted by similarity. ok is false when no neighbor has engaged with it.
func AggregateNeighborRating(neighbors []Neighbor, ratingsByUser map[string]float64) (float64, bool) {
	var weightedSum, weightTotal float64
	for _, n := range neighbors {
		r, has := ratingsByUser[n.UserID]
		if !has {
			continue
		}
		weightedSum += n.Similarity * r
		weightTotal += n.Similarity
	}
	if weightTotal == 0 {
		return 0, false
	}
	return weightedSum / weightTotal, true
}
