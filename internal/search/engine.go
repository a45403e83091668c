// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/vectorstore"
)

const (
	responseCacheTTL = 30 * time.Minute
	intentCacheTTL   = 10 * time.Minute
	maxCandidates    = 500
)

// VectorStore is the subset of internal/vectorstore the engine needs.
type VectorStore interface {
	SearchPoints(ctx context.Context, collection string, queryVector []float32, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error)
	ContentCollection() string
}

var _ VectorStore = (*vectorstore.Store)(nil)

// LexicalStore is the subset of internal/store the engine needs.
type LexicalStore interface {
	SearchByText(ctx context.Context, query string, filters store.SearchFilters, limit int) ([]store.SearchHit, error)
}

var _ LexicalStore = (*store.Store)(nil)

// Cache is the subset of internal/kvcache the engine needs for the
// fingerprint response cache and the query-text intent cache.
type Cache interface {
	Get(ctx context.Context, cacheType, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// QueryEmbedder turns free-text query terms into a dense vector for
// content-vector similarity search.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Personalizer optionally re-scores a candidate's base score by blending
// in a user-specific similarity contribution, per spec.md §4.C step 6.
type Personalizer interface {
	Rescore(ctx context.Context, userID, contentID string, baseScore float64) (float64, bool)
}

// AnalyticsRecorder records a completed search asynchronously; the engine
// never blocks the response on it.
type AnalyticsRecorder interface {
	RecordSearchEvent(ctx context.Context, e store.SearchEvent, normalizedQuery string) (int64, error)
}

// Engine runs the hybrid retrieval pipeline: cache probe, parallel
// vector+lexical retrieval, RRF fusion, optional personalization, facet
// tally, pagination, cache store, and fire-and-forget analytics — the same
// shape as the teacher's recommendation Engine generalized to this
// domain's request/response contract.
type Engine struct {
	vectors      VectorStore
	lexical      LexicalStore
	cache        Cache
	embedder     QueryEmbedder
	personalizer Personalizer
	analytics    AnalyticsRecorder
	config       *ConfigStore
	maxPageSize  int
}

// New builds a search Engine. personalizer and analytics may be nil.
// maxPageSize is the service-wide cap from config.RequestConfig.MaxPageSize;
// 0 disables clamping (tests that don't care about the cap pass 0).
func New(vectors VectorStore, lexical LexicalStore, cache Cache, embedder QueryEmbedder, personalizer Personalizer, analytics AnalyticsRecorder, config *ConfigStore, maxPageSize int) *Engine {
	return &Engine{
		vectors:      vectors,
		lexical:      lexical,
		cache:        cache,
		embedder:     embedder,
		personalizer: personalizer,
		analytics:    analytics,
		config:       config,
		maxPageSize:  maxPageSize,
	}
}

// Search runs the full hybrid pipeline for one request.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req = e.applyDefaults(req)

	fp := fingerprint(req)
	if e.cache != nil {
		var cached Response
		if hit, err := e.cache.Get(ctx, "search_response", fp, &cached); err == nil && hit {
			metrics.SearchResponseCacheHits.Inc()
			cached.CacheHit = true
			cached.LatencyMS = time.Since(start).Milliseconds()
			return &cached, nil
		}
		metrics.SearchResponseCacheMisses.Inc()
	}

	e.cacheIntent(ctx, req.Query)

	weights, version := e.resolveWeights(req.ExperimentVariant)

	var (
		vecHits        []vectorstore.SearchResult
		lexHits        []store.SearchHit
		vecErr, lexErr error
		wg             sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vecStart := time.Now()
		vecHits, vecErr = e.runVectorSearch(ctx, req)
		metrics.RecordSearchStage("vector", time.Since(vecStart))
	}()
	go func() {
		defer wg.Done()
		lexStart := time.Now()
		lexHits, lexErr = e.runLexicalSearch(ctx, req)
		metrics.RecordSearchStage("keyword", time.Since(lexStart))
	}()
	wg.Wait()

	if vecErr != nil && lexErr != nil {
		return nil, fmt.Errorf("both retrieval strategies failed: vector=%v lexical=%v", vecErr, lexErr)
	}

	fuseStart := time.Now()
	cands := mergeCandidates(vecHits, lexHits)
	hits := fuse(cands, weights)
	metrics.RecordSearchStage("fuse", time.Since(fuseStart))

	if req.UserID != "" && e.personalizer != nil {
		e.personalize(ctx, req.UserID, hits)
	}

	facetStart := time.Now()
	facets := computeFacets(hits)
	metrics.RecordSearchStage("facet", time.Since(facetStart))

	total := len(hits)
	page := paginate(hits, req.Page, req.PageSize)

	resp := &Response{
		Hits:            page,
		Facets:          facets,
		TotalCandidates: total,
		Page:            req.Page,
		PageSize:        req.PageSize,
		LatencyMS:       time.Since(start).Milliseconds(),
		RankingVersion:  version,
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, fp, resp, responseCacheTTL); err != nil {
			logging.Error().Err(err).Msg("search response cache store failed")
		}
	}

	e.recordAnalytics(req, total, resp.LatencyMS)
	metrics.RecordSearchStage("total", time.Since(start))
	return resp, nil
}

// applyDefaults fills in unset paging fields and clamps an oversized
// caller-supplied PageSize to the service cap.
func (e *Engine) applyDefaults(req Request) Request {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}
	if e.maxPageSize > 0 && req.PageSize > e.maxPageSize {
		req.PageSize = e.maxPageSize
	}
	return req
}

func (e *Engine) resolveWeights(variant string) (RankingWeights, int) {
	if e.config == nil {
		return RankingWeights{Vector: 0.4, Keyword: 0.3, Quality: 0.2, Freshness: 0.1, RRFK: 60}, 0
	}
	return e.config.Resolve(variant)
}

func (e *Engine) cacheIntent(ctx context.Context, query string) {
	if e.cache == nil || query == "" {
		return
	}
	key := intentCacheKey(query)
	var cached Intent
	if hit, err := e.cache.Get(ctx, "search_intent", key, &cached); err == nil && hit {
		return
	}
	intent := parseIntent(query)
	if err := e.cache.Set(ctx, key, intent, intentCacheTTL); err != nil {
		logging.Error().Err(err).Msg("intent cache store failed")
	}
}

func (e *Engine) runVectorSearch(ctx context.Context, req Request) ([]vectorstore.SearchResult, error) {
	if e.vectors == nil || e.embedder == nil {
		return nil, fmt.Errorf("vector search unavailable")
	}
	vec, err := e.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	opts := vectorstore.SearchOptions{Limit: uint64(maxCandidates)}
	if len(req.Filters.Platforms) == 1 {
		opts.FilterField = "platform"
		opts.FilterValue = req.Filters.Platforms[0]
	}

	results, err := e.vectors.SearchPoints(ctx, e.vectors.ContentCollection(), vec, opts)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) runLexicalSearch(ctx context.Context, req Request) ([]store.SearchHit, error) {
	if e.lexical == nil {
		return nil, fmt.Errorf("lexical search unavailable")
	}
	filters := store.SearchFilters{
		Genres:    req.Filters.Genres,
		Platforms: req.Filters.Platforms,
		YearMin:   req.Filters.YearMin,
		YearMax:   req.Filters.YearMax,
	}
	return e.lexical.SearchByText(ctx, req.Query, filters, maxCandidates)
}

func (e *Engine) personalize(ctx context.Context, userID string, hits []Hit) {
	var wg sync.WaitGroup
	rescored := make([]float64, len(hits))
	for i := range hits {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if s, ok := e.personalizer.Rescore(ctx, userID, hits[idx].ContentID, hits[idx].Score); ok {
				rescored[idx] = s
			} else {
				rescored[idx] = hits[idx].Score
			}
		}(i)
	}
	wg.Wait()
	for i := range hits {
		hits[i].Score = rescored[i]
	}
	sortHitsByScore(hits)
}

func (e *Engine) recordAnalytics(req Request, resultCount int, latencyMS int64) {
	if e.analytics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := e.analytics.RecordSearchEvent(ctx, store.SearchEvent{
			Query:       req.Query,
			UserID:      req.UserID,
			ResultCount: resultCount,
			LatencyMS:   int(latencyMS),
		}, normalizeQuery(req.Query))
		if err != nil {
			logging.Error().Err(err).Msg("search analytics record failed")
		}
	}()
}

func paginate(hits []Hit, page, pageSize int) []Hit {
	lo := (page - 1) * pageSize
	if lo >= len(hits) {
		return []Hit{}
	}
	hi := lo + pageSize
	if hi > len(hits) {
		hi = len(hits)
	}
	return hits[lo:hi]
}
