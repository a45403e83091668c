// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates application configuration from
// layered sources (defaults, YAML file, environment variables) using
// Koanf v2, matching the layering discipline of the media-analytics
// platform this repo descends from.
package config

import (
	"fmt"
	"time"
)

// StoreConfig configures the canonical relational datastore (DuckDB).
type StoreConfig struct {
	Path        string `json:"path"`
	MaxMemoryMB int    `json:"max_memory_mb"`
	Threads     int    `json:"threads"`
}

// VectorStoreConfig configures the Qdrant vector-store client.
type VectorStoreConfig struct {
	URL               string `json:"url"`
	APIKey            string `json:"api_key"`
	ContentCollection string `json:"content_collection"`
	UserCollection    string `json:"user_embeddings_collection"`
	ItemCollection    string `json:"item_embeddings_collection"`
	EmbeddingDim      int    `json:"embedding_dim"`
}

// KVCacheConfig configures the Redis-backed KV cache.
type KVCacheConfig struct {
	Addr             string        `json:"addr"`
	Password         string        `json:"password"`
	DB               int           `json:"db"`
	ResponseTTL      time.Duration `json:"response_ttl"`
	IntentTTL        time.Duration `json:"intent_ttl"`
	EntityResolveTTL time.Duration `json:"entity_resolve_ttl"`
}

// BrokerConfig configures the NATS JetStream pub/sub broker and event bus.
type BrokerConfig struct {
	URL          string `json:"url"`
	TopicPrefix  string `json:"topic_prefix"`
	MaxReconnect int    `json:"max_reconnect"`
}

// ScheduleConfig configures the four ingestion scheduler intervals.
type ScheduleConfig struct {
	CatalogRefresh      time.Duration `json:"catalog_refresh"`
	AvailabilitySync    time.Duration `json:"availability_sync"`
	ExpiringContent     time.Duration `json:"expiring_content"`
	MetadataEnrichment  time.Duration `json:"metadata_enrichment"`
	StalenessThreshold  time.Duration `json:"staleness_threshold"`
	ColdStartLookback   time.Duration `json:"cold_start_lookback"`
	BatchSize           int           `json:"batch_size"`
	VectorFlushChunk    int           `json:"vector_flush_chunk"`
}

// BandwidthConfig configures the per-source ingestion token bucket.
type BandwidthConfig struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// RankingDefaultsConfig seeds the initial default ranking configuration.
type RankingDefaultsConfig struct {
	Vector    float64 `json:"vector"`
	Keyword   float64 `json:"keyword"`
	Quality   float64 `json:"quality"`
	Freshness float64 `json:"freshness"`
	RRFK      int     `json:"rrf_k"`
}

// LoRAConfig configures default training hyperparameters.
type LoRAConfig struct {
	Rank           int     `json:"rank"`
	Regularization float64 `json:"regularization"`
	Alpha          float64 `json:"alpha"`
	Iterations     int     `json:"iterations"`
	Workers        int     `json:"workers"`
	FallbackTopK   int     `json:"fallback_top_k"`
	SimilarityMin  float64 `json:"similarity_min"`
}

// RequestConfig configures search/sync request-handling limits.
type RequestConfig struct {
	Timeout         time.Duration `json:"timeout"`
	DefaultPageSize int           `json:"default_page_size"`
	MaxPageSize     int           `json:"max_page_size"`
}

// OfflineQueueConfig configures the durable offline sync queue.
type OfflineQueueConfig struct {
	Path       string `json:"path"`
	MaxRetries int    `json:"max_retries"`
}

// CommandConfig configures the remote command router.
type CommandConfig struct {
	DefaultTTL  time.Duration `json:"default_ttl"`
	AckSweep    time.Duration `json:"ack_sweep_interval"`
	AckMaxAge   time.Duration `json:"ack_max_age"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json | console
}

// MetricsConfig configures the Prometheus metrics HTTP listener.
type MetricsConfig struct {
	Addr string `json:"addr"`
}

// EmbeddingConfig configures the external embedding-model client the
// metadata-enrichment scheduler and the search engine's query embedding
// use to turn text into dense vectors.
type EmbeddingConfig struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Store         StoreConfig           `json:"store"`
	VectorStore   VectorStoreConfig     `json:"vector_store"`
	KVCache       KVCacheConfig         `json:"kv_cache"`
	Broker        BrokerConfig          `json:"broker"`
	Schedule      ScheduleConfig        `json:"schedule"`
	Bandwidth     BandwidthConfig       `json:"bandwidth"`
	RankingDefaults RankingDefaultsConfig `json:"ranking_defaults"`
	LoRA          LoRAConfig            `json:"lora"`
	Request       RequestConfig         `json:"request"`
	OfflineQueue  OfflineQueueConfig    `json:"offline_queue"`
	Command       CommandConfig         `json:"command"`
	Logging       LoggingConfig         `json:"logging"`
	Embedding     EmbeddingConfig       `json:"embedding"`
	Metrics       MetricsConfig         `json:"metrics"`
	Workers       int                   `json:"workers"`
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        "./data/discovery.duckdb",
			MaxMemoryMB: 2048,
			Threads:     0, // 0 -> runtime.NumCPU()
		},
		VectorStore: VectorStoreConfig{
			URL:               "localhost:6334",
			ContentCollection: "content-vectors",
			UserCollection:    "user-embeddings",
			ItemCollection:    "item-embeddings",
			EmbeddingDim:      768,
		},
		KVCache: KVCacheConfig{
			Addr:             "localhost:6379",
			DB:               0,
			ResponseTTL:      30 * time.Minute,
			IntentTTL:        10 * time.Minute,
			EntityResolveTTL: 1 * time.Hour,
		},
		Broker: BrokerConfig{
			URL:          "nats://localhost:4222",
			TopicPrefix:  "",
			MaxReconnect: -1,
		},
		Schedule: ScheduleConfig{
			CatalogRefresh:     6 * time.Hour,
			AvailabilitySync:   1 * time.Hour,
			ExpiringContent:    15 * time.Minute,
			MetadataEnrichment: 24 * time.Hour,
			StalenessThreshold: 7 * 24 * time.Hour,
			ColdStartLookback:  7 * 24 * time.Hour,
			BatchSize:          100,
			VectorFlushChunk:   100,
		},
		Bandwidth: BandwidthConfig{
			RatePerSecond: 5.0,
			Burst:         10,
		},
		RankingDefaults: RankingDefaultsConfig{
			Vector: 0.4, Keyword: 0.3, Quality: 0.2, Freshness: 0.1,
			RRFK: 60,
		},
		LoRA: LoRAConfig{
			Rank:           8,
			Regularization: 0.1,
			Alpha:          40.0,
			Iterations:     15,
			Workers:        0, // 0 -> runtime.NumCPU()
			FallbackTopK:   20,
			SimilarityMin:  0.7,
		},
		Request: RequestConfig{
			Timeout:         5 * time.Second,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		OfflineQueue: OfflineQueueConfig{
			Path:       "./data/offline-queue",
			MaxRetries: 3,
		},
		Command: CommandConfig{
			DefaultTTL: 5 * time.Second,
			AckSweep:   5 * time.Second,
			AckMaxAge:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
			Timeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Workers: 0,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	w := c.RankingDefaults
	sum := w.Vector + w.Keyword + w.Quality + w.Freshness
	if sum < 1.0-1e-4 || sum > 1.0+1e-4 {
		return fmt.Errorf("ranking_defaults weights must sum to 1.0 +/- 1e-4, got %f", sum)
	}
	if w.Vector < 0 || w.Keyword < 0 || w.Quality < 0 || w.Freshness < 0 {
		return fmt.Errorf("ranking_defaults weights must be non-negative")
	}
	if w.RRFK < 1 {
		return fmt.Errorf("ranking_defaults.rrf_k must be positive, got %d", w.RRFK)
	}
	if c.LoRA.Rank < 1 {
		return fmt.Errorf("lora.rank must be positive, got %d", c.LoRA.Rank)
	}
	if c.VectorStore.EmbeddingDim < 1 {
		return fmt.Errorf("vector_store.embedding_dim must be positive, got %d", c.VectorStore.EmbeddingDim)
	}
	if c.Request.MaxPageSize < c.Request.DefaultPageSize {
		return fmt.Errorf("request.max_page_size must be >= request.default_page_size")
	}
	if c.OfflineQueue.MaxRetries < 1 {
		return fmt.Errorf("offline_queue.max_retries must be positive, got %d", c.OfflineQueue.MaxRetries)
	}
	return nil
}

// Clone returns a deep copy of the configuration (all fields are value
// types, so a direct struct copy suffices).
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
