// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package entity resolves raw ingested records to a single canonical
// content id, trying four strategies in strict order: EIDR exact match,
// external-id exact match, fuzzy title+year, and embedding similarity.
package entity

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/streamforge/discovery/internal/cache"
	"github.com/streamforge/discovery/internal/metrics"
	"github.com/streamforge/discovery/internal/models"
	"github.com/streamforge/discovery/internal/store"
)

const resultCacheTTL = time.Hour

// Store is the subset of internal/store the resolver needs.
type Store interface {
	FindByExternalID(ctx context.Context, namespace, externalID string) (string, error)
	UpsertEntityMapping(ctx context.Context, m store.EntityMapping) error
}

var _ Store = (*store.Store)(nil)

// Candidate is a raw record being matched against known canonical content.
type Candidate struct {
	SourceRecordID string
	EIDR           string
	IMDbID         string
	TMDbID         string
	Title          string
	Year           int
	Embedding      []float32
}

// KnownEntity is one existing canonical row the fuzzy/embedding strategies
// compare a candidate against.
type KnownEntity struct {
	CanonicalID string
	Title       string
	Year        int
	Embedding   []float32
}

// Result is the outcome of one resolve call.
type Result struct {
	CanonicalID string
	Confidence  float64
	Method      models.ResolutionMethod
}

// Matched reports whether a canonical id was found.
func (r Result) Matched() bool { return r.Method != models.MethodNone }

// Resolver runs the four-strategy resolution cascade. It holds a
// sync.RWMutex-guarded in-memory index (external-id family -> canonical id)
// rebuilt from the persistent mapping table on startup, and a bounded TTL
// cache of recent lookup results.
type Resolver struct {
	store Store

	mu         sync.RWMutex
	eidrIndex  map[string]string
	imdbIndex  map[string]string
	tmdbIndex  map[string]string

	resultCache cache.Cacher
}

// New creates a Resolver backed by store for persistence and a fresh
// 1-hour TTL result cache.
func New(store Store) *Resolver {
	return &Resolver{
		store:       store,
		eidrIndex:   make(map[string]string),
		imdbIndex:   make(map[string]string),
		tmdbIndex:   make(map[string]string),
		resultCache: cache.NewTTL(resultCacheTTL),
	}
}

// LoadIndex rebuilds the in-memory external-id indices from a snapshot,
// called once at startup with rows read from the persistent mapping table.
func (r *Resolver) LoadIndex(mappings []models.ExternalIDMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range mappings {
		r.indexLocked(m.IDType, m.ExternalID, m.CanonicalID)
	}
}

func (r *Resolver) indexLocked(idType models.ExternalIDType, externalID, canonicalID string) {
	switch idType {
	case models.ExternalEIDR:
		r.eidrIndex[externalID] = canonicalID
	case models.ExternalIMDb:
		r.imdbIndex[externalID] = canonicalID
	case models.ExternalTMDb:
		r.tmdbIndex[externalID] = canonicalID
	}
}

// Resolve runs the four strategies in order and returns the first match.
// On a non-exact match it persists the mapping per the spec's
// conflict-resolution rule (store.UpsertEntityMapping already implements
// "keep max confidence, else keep latest" via its upsert semantics).
func (r *Resolver) Resolve(ctx context.Context, c Candidate, known []KnownEntity) (Result, error) {
	start := time.Now()

	if res, ok := r.cacheLookup(c); ok {
		metrics.RecordEntityResolution(string(res.Method), time.Since(start), res.Matched())
		return res, nil
	}

	res := r.resolveUncached(c, known)

	if res.Matched() && res.Method != models.MethodEIDRExact && res.Method != models.MethodExternalIMDb && res.Method != models.MethodExternalTMDb {
		if err := r.store.UpsertEntityMapping(ctx, store.EntityMapping{
			ContentID:      res.CanonicalID,
			Source:         "resolver",
			SourceRecordID: c.SourceRecordID,
			Method:         string(res.Method),
			Confidence:     res.Confidence,
		}); err != nil {
			return res, fmt.Errorf("persist entity mapping: %w", err)
		}
	}

	r.cacheStore(c, res)
	metrics.RecordEntityResolution(string(res.Method), time.Since(start), res.Matched())
	return res, nil
}

func (r *Resolver) resolveUncached(c Candidate, known []KnownEntity) Result {
	if c.EIDR != "" {
		r.mu.RLock()
		id, ok := r.eidrIndex[c.EIDR]
		r.mu.RUnlock()
		if ok {
			return Result{CanonicalID: id, Confidence: 1.00, Method: models.MethodEIDRExact}
		}
	}

	if c.IMDbID != "" {
		r.mu.RLock()
		id, ok := r.imdbIndex[c.IMDbID]
		r.mu.RUnlock()
		if ok {
			return Result{CanonicalID: id, Confidence: 0.99, Method: models.MethodExternalIMDb}
		}
	}

	if c.TMDbID != "" {
		r.mu.RLock()
		id, ok := r.tmdbIndex[c.TMDbID]
		r.mu.RUnlock()
		if ok {
			return Result{CanonicalID: id, Confidence: 0.99, Method: models.MethodExternalTMDb}
		}
	}

	if res, ok := fuzzyTitleYearMatch(c, known); ok {
		return res
	}

	if res, ok := embeddingSimilarityMatch(c, known); ok {
		return res
	}

	return Result{Method: models.MethodNone}
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTitle lowercases, strips non-alphanumerics, and collapses
// whitespace, per spec.md §4.A strategy 3.
func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	stripped := nonAlphanumeric.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

func fuzzyTitleYearMatch(c Candidate, known []KnownEntity) (Result, bool) {
	if c.Title == "" {
		return Result{}, false
	}
	normCandidate := normalizeTitle(c.Title)

	var best KnownEntity
	bestSim := 0.0
	found := false

	for _, k := range known {
		if c.Year != 0 && k.Year != 0 && absInt(c.Year-k.Year) > 1 {
			continue
		}
		sim := normalizedSimilarity(normCandidate, normalizeTitle(k.Title))
		if sim > bestSim {
			bestSim = sim
			best = k
			found = true
		}
	}

	if !found || bestSim < 0.85 {
		return Result{}, false
	}

	confidence := 0.90 + 0.08*((bestSim-0.85)/0.15)
	return Result{CanonicalID: best.CanonicalID, Confidence: confidence, Method: models.MethodFuzzyTitleYear}, true
}

// normalizedSimilarity converts Levenshtein edit distance to a 0..1
// similarity score against the longer of the two strings.
func normalizedSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

func embeddingSimilarityMatch(c Candidate, known []KnownEntity) (Result, bool) {
	if len(c.Embedding) == 0 {
		return Result{}, false
	}

	var best KnownEntity
	bestCos := 0.0
	found := false

	for _, k := range known {
		if len(k.Embedding) != len(c.Embedding) {
			continue
		}
		cos := cosineSimilarity(c.Embedding, k.Embedding)
		if cos > bestCos {
			bestCos = cos
			best = k
			found = true
		}
	}

	if !found || bestCos < 0.92 {
		return Result{}, false
	}

	confidence := 0.85 + 0.10*((bestCos-0.92)/0.08)
	return Result{CanonicalID: best.CanonicalID, Confidence: confidence, Method: models.MethodEmbedding}, true
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func cacheKey(idType, id string) string {
	return idType + ":" + id
}

func (r *Resolver) cacheLookup(c Candidate) (Result, bool) {
	key := candidateCacheKey(c)
	if key == "" {
		return Result{}, false
	}
	v, ok := r.resultCache.Get(key)
	if !ok {
		return Result{}, false
	}
	res, ok := v.(Result)
	return res, ok
}

func (r *Resolver) cacheStore(c Candidate, res Result) {
	key := candidateCacheKey(c)
	if key == "" {
		return
	}
	r.resultCache.Set(key, res)
}

// candidateCacheKey prefers the strongest identifying field present, since
// the cache is keyed "<id_type>:<id>" per spec.md §4.A.
func candidateCacheKey(c Candidate) string {
	switch {
	case c.EIDR != "":
		return cacheKey("eidr", c.EIDR)
	case c.IMDbID != "":
		return cacheKey("imdb", c.IMDbID)
	case c.TMDbID != "":
		return cacheKey("tmdb", c.TMDbID)
	default:
		return ""
	}
}
