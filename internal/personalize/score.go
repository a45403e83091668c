// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/streamforge/discovery/internal/apierr"
	"github.com/streamforge/discovery/internal/store"
)

// ContentStore is the subset of internal/store Ranker needs to build
// genre feature vectors for content and for a user's watch history.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*store.Content, error)
	WatchHistoryForUser(ctx context.Context, userID string) ([]store.WatchHistoryEntry, error)
}

var _ ContentStore = (*store.Store)(nil)

const tasteCacheTTL = 10 * time.Minute

type tasteCacheEntry struct {
	vector []float64
	at     time.Time
}

// Ranker implements internal/search's Personalizer interface. It re-scores
// a hit with sigma * cos(u*B*A, e) when the user has a trained adapter,
// per spec.md §4.C step 6 and §4.D's adapter form, and falls back to a
// collaborative neighbor estimate when they don't.
type Ranker struct {
	registry *Registry
	content  ContentStore
	taxonomy Taxonomy
	topK     int
	minSim   float64

	mu           sync.Mutex
	tasteCache   map[string]tasteCacheEntry
	neighborPool map[string][]float64
}

// NewRanker builds a Ranker. The neighbor pool for collaborative fallback
// starts empty; call SetNeighborPool once a batch of user taste vectors
// has been computed.
func NewRanker(registry *Registry, content ContentStore, taxonomy Taxonomy, topK int, minSim float64) *Ranker {
	return &Ranker{
		registry:   registry,
		content:    content,
		taxonomy:   taxonomy,
		topK:       topK,
		minSim:     minSim,
		tasteCache: make(map[string]tasteCacheEntry),
	}
}

// SetNeighborPool replaces the candidate set NearestNeighbors searches for
// the collaborative fallback path.
func (r *Ranker) SetNeighborPool(pool map[string][]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.neighborPool = pool
}

// Rescore satisfies internal/search's Personalizer interface.
func (r *Ranker) Rescore(ctx context.Context, userID, contentID string, baseScore float64) (float64, bool) {
	e, ok := r.contentFeature(ctx, contentID)
	if !ok {
		return baseScore, false
	}

	adapter, err := r.registry.Load(ctx, userID, defaultAdapterName)
	switch {
	case err == nil:
		u, ok := r.tasteVector(ctx, userID)
		if !ok {
			return baseScore, false
		}
		projected := matVec(matVec(u, adapter.B), adapter.A)
		sim := cosineSimilarity(projected, e)
		return baseScore + clampSigma(adapter.Sigma)*sim, true
	case errors.Is(err, apierr.ErrNotFound):
		return r.collaborativeFallback(ctx, userID, contentID, e, baseScore)
	default:
		return baseScore, false
	}
}

func (r *Ranker) collaborativeFallback(ctx context.Context, userID, contentID string, e []float64, baseScore float64) (float64, bool) {
	target, ok := r.tasteVector(ctx, userID)
	if !ok {
		return baseScore, false
	}

	r.mu.Lock()
	pool := r.neighborPool
	r.mu.Unlock()
	if len(pool) == 0 {
		return baseScore, false
	}

	neighbors := NearestNeighbors(target, pool, r.topK, r.minSim)
	if len(neighbors) == 0 {
		return baseScore, false
	}

	ratings := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		history, err := r.content.WatchHistoryForUser(ctx, n.UserID)
		if err != nil {
			continue
		}
		for _, h := range history {
			if h.ContentID != contentID {
				continue
			}
			rating := DeriveRating(InteractionFromWatchHistory(n.UserID, h.ContentID, h.PositionSeconds, h.DurationSeconds))
			ratings[n.UserID] = rating
			break
		}
	}

	agg, ok := AggregateNeighborRating(neighbors, ratings)
	if !ok {
		return baseScore, false
	}
	return baseScore + clampSigma(defaultSigma)*agg, true
}

func (r *Ranker) contentFeature(ctx context.Context, contentID string) ([]float64, bool) {
	c, err := r.content.GetContent(ctx, contentID)
	if err != nil {
		return nil, false
	}
	return r.taxonomy.Vector(c.Genres), true
}

// tasteVector computes (and caches for tasteCacheTTL) a user's aggregate
// genre preference vector from their watch history.
func (r *Ranker) tasteVector(ctx context.Context, userID string) ([]float64, bool) {
	r.mu.Lock()
	if entry, ok := r.tasteCache[userID]; ok && time.Since(entry.at) < tasteCacheTTL {
		r.mu.Unlock()
		return entry.vector, true
	}
	r.mu.Unlock()

	history, err := r.content.WatchHistoryForUser(ctx, userID)
	if err != nil || len(history) == 0 {
		return nil, false
	}

	items := make([]trainingItem, 0, len(history))
	for _, h := range history {
		c, err := r.content.GetContent(ctx, h.ContentID)
		if err != nil {
			continue
		}
		in := InteractionFromWatchHistory(userID, h.ContentID, h.PositionSeconds, h.DurationSeconds)
		items = append(items, trainingItem{
			feature:    r.taxonomy.Vector(c.Genres),
			rating:     DeriveRating(in),
			confidence: Confidence(DeriveRating(in), 1.0),
		})
	}
	if len(items) == 0 {
		return nil, false
	}

	vec := userTasteVector(items, r.taxonomy.Dim())
	r.mu.Lock()
	r.tasteCache[userID] = tasteCacheEntry{vector: vec, at: time.Now()}
	r.mu.Unlock()
	return vec, true
}

func clampSigma(sigma float64) float64 {
	switch {
	case sigma < 0:
		return 0
	case sigma > 1:
		return 1
	default:
		return sigma
	}
}
