// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import "sync"

// trainingItem is one user/content interaction reduced to its feature
// vector, derived rating and ALS confidence weight.
type trainingItem struct {
	feature    []float64
	rating     float64
	confidence float64
}

// TrainAll fits one adapter per user in interactionsByUser, using the
// taxonomy to turn each interaction's content genres into a feature
// vector. Users are trained concurrently across cfg.Workers goroutines,
// the same chunked-worker-pool shape as the collaborative-filtering
// engine's per-user factor updates.
func TrainAll(cfg Config, taxonomy Taxonomy, interactionsByUser map[string][]Interaction, genresByContent map[string][]string) map[string]Adapter {
	userIDs := make([]string, 0, len(interactionsByUser))
	for id := range interactionsByUser {
		userIDs = append(userIDs, id)
	}

	out := make(map[string]Adapter, len(userIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	chunkSize := (len(userIDs) + workers - 1) / workers
	if chunkSize == 0 {
		chunkSize = 1
	}

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			for _, userID := range ids {
				items := buildTrainingItems(taxonomy, interactionsByUser[userID], genresByContent)
				if len(items) == 0 {
					continue
				}
				adapter := trainUserAdapter(cfg, items, taxonomy.Dim())
				adapter.UserID = userID
				adapter.Name = defaultAdapterName

				mu.Lock()
				out[userID] = adapter
				mu.Unlock()
			}
		}(userIDs[start:end])
	}
	wg.Wait()
	return out
}

func buildTrainingItems(taxonomy Taxonomy, interactions []Interaction, genresByContent map[string][]string) []trainingItem {
	items := make([]trainingItem, 0, len(interactions))
	for _, in := range interactions {
		genres, ok := genresByContent[in.ContentID]
		if !ok {
			continue
		}
		rating := DeriveRating(in)
		items = append(items, trainingItem{
			feature:    taxonomy.Vector(genres),
			rating:     rating,
			confidence: Confidence(rating, 1.0),
		})
	}
	return items
}

// userTasteVector is the fixed "u" the bilinear adapter is built around: a
// confidence-weighted average of the features of everything the user has
// engaged with, normalized to unit length.
func userTasteVector(items []trainingItem, dim int) []float64 {
	u := make([]float64, dim)
	var weight float64
	for _, it := range items {
		w := it.confidence * it.rating
		for i, v := range it.feature {
			u[i] += w * v
		}
		weight += w
	}
	if weight > 0 {
		for i := range u {
			u[i] /= weight
		}
	}
	normalize(u)
	return u
}

// trainUserAdapter alternately solves B (fix A) and A (fix B) via
// confidence-weighted Cholesky-solved normal equations, the same
// alternating-least-squares idiom recommend/algorithms' ALS uses for its
// user/item factor matrices, generalized to the bilinear low-rank pair.
func trainUserAdapter(cfg Config, items []trainingItem, dim int) Adapter {
	rank := cfg.Rank
	if rank > dim {
		rank = dim
	}
	if rank < 1 {
		rank = 1
	}

	u := userTasteVector(items, dim)
	A := initMatrix(rank, dim, 7)
	B := initMatrix(dim, rank, 13)

	ratings := make([]float64, len(items))
	confidences := make([]float64, len(items))
	for i, it := range items {
		ratings[i] = it.rating
		confidences[i] = it.confidence
	}

	iterations := cfg.Iterations
	if iterations < 1 {
		iterations = 1
	}

	for iter := 0; iter < iterations; iter++ {
		q := matVec(u, B) // 1 x rank

		designsA := make([][]float64, len(items))
		for i, it := range items {
			designsA[i] = kron(q, it.feature)
		}
		gramA, bA := buildNormalEquations(rank*dim, designsA, ratings, confidences, cfg.Regularization)
		vecA := choleskySolve(gramA, bA)
		A = reshapeRows(vecA, rank, dim)

		designsB := make([][]float64, len(items))
		for i, it := range items {
			z := matMulVec(A, it.feature) // rank-vector
			designsB[i] = kron(u, z)
		}
		gramB, bB := buildNormalEquations(dim*rank, designsB, ratings, confidences, cfg.Regularization)
		vecB := choleskySolve(gramB, bB)
		B = reshapeRows(vecB, dim, rank)
	}

	return Adapter{
		Rank:  rank,
		Dim:   dim,
		A:     A,
		B:     B,
		Sigma: defaultSigma,
	}
}

func buildNormalEquations(n int, designs [][]float64, ratings, confidences []float64, lambda float64) ([][]float64, []float64) {
	gram := make([][]float64, n)
	for i := range gram {
		gram[i] = make([]float64, n)
	}
	b := make([]float64, n)

	for idx, f := range designs {
		c := confidences[idx]
		r := ratings[idx]
		for i := 0; i < n; i++ {
			if f[i] == 0 {
				continue
			}
			b[i] += c * r * f[i]
			for j := i; j < n; j++ {
				v := c * f[i] * f[j]
				gram[i][j] += v
				if i != j {
					gram[j][i] += v
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		gram[i][i] += lambda
	}
	return gram, b
}

func matMulVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for j, rv := range row {
			if j < len(v) {
				sum += rv * v[j]
			}
		}
		out[i] = sum
	}
	return out
}

func initMatrix(rows, cols, seed int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			v := float64((i*cols+j+seed)%997) / 997.0
			m[i][j] = 0.1 * (v - 0.5)
		}
	}
	return m
}
