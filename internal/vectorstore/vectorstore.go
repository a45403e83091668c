// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vectorstore wraps the Qdrant client used for content-vector,
// user-embedding, and item-embedding similarity search.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/metrics"
)

// Store wraps a Qdrant client and the collection names this service uses.
type Store struct {
	client            *qdrant.Client
	contentCollection string
	userCollection    string
	itemCollection    string
	embeddingDim      uint64
}

// Point is one vector plus its payload, the unit CreateCollection-agnostic
// callers (ingestion) upsert with; searches return SearchResult.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored hit from a similarity search.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Open connects to Qdrant and ensures the three collections this service
// needs (content-vectors, user-embeddings, item-embeddings) exist.
func Open(ctx context.Context, cfg config.VectorStoreConfig) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   hostFromURL(cfg.URL),
		Port:   portFromURL(cfg.URL),
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	s := &Store{
		client:            client,
		contentCollection: cfg.ContentCollection,
		userCollection:    cfg.UserCollection,
		itemCollection:    cfg.ItemCollection,
		embeddingDim:      uint64(cfg.EmbeddingDim),
	}

	for _, name := range []string{s.contentCollection, s.userCollection, s.itemCollection} {
		if name == "" {
			continue
		}
		if err := s.ensureCollection(ctx, name); err != nil {
			return nil, fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}

	return s, nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// HealthCheck verifies the Qdrant cluster is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	start := time.Now()
	_, err := s.client.HealthCheck(ctx)
	metrics.RecordVectorStoreQuery("health_check", "", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.embeddingDim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// UpsertPoints writes a batch of points to the named collection.
func (s *Store) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	start := time.Now()
	qPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qPoints = append(qPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qPoints,
	})
	metrics.RecordVectorStoreQuery("upsert", collection, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("upsert points into %s: %w", collection, err)
	}
	return nil
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	Limit       uint64
	ScoreFloor  float32
	FilterField string
	FilterValue string
}

// SearchPoints returns the top-scoring points for a query vector, optionally
// filtered on a single keyword field (e.g. "region" == "US").
func (s *Store) SearchPoints(ctx context.Context, collection string, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	start := time.Now()
	limit := opts.Limit
	if limit == 0 {
		limit = 20
	}

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.FilterField != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(opts.FilterField, opts.FilterValue),
			},
		}
	}
	if opts.ScoreFloor > 0 {
		query.ScoreThreshold = &opts.ScoreFloor
	}

	points, err := s.client.Query(ctx, query)
	metrics.RecordVectorStoreQuery("search", collection, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("search points in %s: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(points))
	for _, p := range points {
		out = append(out, SearchResult{
			ID:      pointIDString(p.Id),
			Score:   p.Score,
			Payload: payloadToMap(p.Payload),
		})
	}
	return out, nil
}

// pointIDString renders a Qdrant point id (numeric or UUID) as a string.
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// payloadToMap converts a Qdrant payload (map of typed Values) into a plain
// Go map for callers that don't need the wire representation.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v.AsInterface()
	}
	return out
}

// ContentCollection returns the configured content-vectors collection name.
func (s *Store) ContentCollection() string { return s.contentCollection }

// UserCollection returns the configured user-embeddings collection name.
func (s *Store) UserCollection() string { return s.userCollection }

// ItemCollection returns the configured item-embeddings collection name.
func (s *Store) ItemCollection() string { return s.itemCollection }
