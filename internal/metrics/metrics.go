// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Store query performance (DuckDB)
// - Vector store queries (Qdrant)
// - KV cache efficiency (Redis)
// - Entity resolution
// - Ingestion scheduling
// - Search/ranking latency
// - Personalization training
// - Cross-device sync and the offline queue
// - Circuit breaker and broker (NATS) health

var (
	// Store Metrics (DuckDB)
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Vector Store Metrics (Qdrant)
	VectorStoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vector_store_query_duration_seconds",
			Help:    "Duration of Qdrant queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	VectorStoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vector_store_query_errors_total",
			Help: "Total number of Qdrant query errors",
		},
		[]string{"operation", "collection"},
	)

	// KV Cache Metrics (Redis)
	KVCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_cache_hits_total",
			Help: "Total number of KV cache hits",
		},
		[]string{"cache_type"}, // "search_response", "search_intent"
	)

	KVCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_cache_misses_total",
			Help: "Total number of KV cache misses",
		},
		[]string{"cache_type"},
	)

	// Entity Resolution Metrics
	EntityResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entity_resolution_duration_seconds",
			Help:    "Duration of entity resolution attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"}, // eidr-exact, external-id(imdb), external-id(tmdb), fuzzy-title-year, embedding-similarity, none
	)

	EntityResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entity_resolutions_total",
			Help: "Total number of entity resolution attempts by method and outcome",
		},
		[]string{"method", "outcome"}, // outcome: resolved, unresolved
	)

	// Ingestion Scheduler Metrics
	IngestBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_duration_seconds",
			Help:    "Duration of ingestion batch processing in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"scheduler"}, // catalog_refresh, availability_sync, expiring_content, metadata_enrichment
	)

	IngestItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_processed_total",
			Help: "Total number of content items processed during ingestion",
		},
		[]string{"scheduler", "source"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Total number of ingestion errors",
		},
		[]string{"scheduler", "source", "category"},
	)

	IngestQualityScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_quality_score",
			Help:    "Distribution of computed content quality scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// Search Metrics
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Duration of hybrid search requests in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // vector, keyword, fuse, facet, total
	)

	SearchResponseCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_response_cache_hits_total",
			Help: "Total number of search response cache hits",
		},
	)

	SearchResponseCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_response_cache_misses_total",
			Help: "Total number of search response cache misses",
		},
	)

	// Personalization (LoRA/ALS) Metrics
	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Duration of LoRA adapter training runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"}, // success, error
	)

	TrainingUsersTrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_users_trained_total",
			Help: "Total number of users with a LoRA adapter trained",
		},
	)

	TrainingColdStartFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "training_cold_start_fallbacks_total",
			Help: "Total number of requests served via the cold-start fallback",
		},
	)

	// Sync Engine Metrics
	SyncOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_operations_total",
			Help: "Total number of sync operations applied by kind",
		},
		[]string{"kind"}, // watchlist_add, watchlist_remove, progress
	)

	SyncConflictsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_conflicts_resolved_total",
			Help: "Total number of CRDT merge conflicts resolved",
		},
	)

	SyncDevicesOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_devices_online",
			Help: "Current number of devices connected to the sync engine",
		},
	)

	// Offline Queue Metrics
	OfflineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offline_queue_depth",
			Help: "Current number of entries in the offline sync queue",
		},
	)

	OfflineQueueEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_queue_enqueued_total",
			Help: "Total number of operations enqueued to the offline sync queue",
		},
	)

	OfflineQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_queue_dropped_total",
			Help: "Total number of operations dropped after exceeding the retry cap",
		},
	)

	OfflineQueueReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_queue_replayed_total",
			Help: "Total number of operations successfully replayed from the offline queue",
		},
	)

	OfflineQueueBytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_queue_bytes_saved_total",
			Help: "Estimated bytes saved by delta-encoding progress-update payloads instead of transmitting absolute values",
		},
	)

	// Remote Command Metrics
	RemoteCommandsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_commands_issued_total",
			Help: "Total number of remote commands issued to devices",
		},
		[]string{"command"},
	)

	RemoteCommandsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_commands_expired_total",
			Help: "Total number of remote commands expired before acknowledgment",
		},
		[]string{"command"},
	)

	RemoteCommandsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_commands_failed_total",
			Help: "Total number of remote commands rejected before publish, by failure reason",
		},
		[]string{"reason"},
	)

	RemoteCommandsAcked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_commands_acked_total",
			Help: "Total number of remote commands acknowledged by their target device",
		},
		[]string{"command"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	// Broker Metrics (NATS/Watermill)
	BrokerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total number of messages published to the broker",
		},
		[]string{"topic"},
	)

	BrokerMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_consumed_total",
			Help: "Total number of messages consumed from the broker",
		},
		[]string{"topic"},
	)

	BrokerProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broker_processing_duration_seconds",
			Help:    "Duration of broker message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStoreQuery records a DuckDB query metric.
func RecordStoreQuery(operation, table string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordVectorStoreQuery records a Qdrant query metric.
func RecordVectorStoreQuery(operation, collection string, duration time.Duration, err error) {
	VectorStoreQueryDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
	if err != nil {
		VectorStoreQueryErrors.WithLabelValues(operation, collection).Inc()
	}
}

// RecordKVCache records a KV cache hit or miss.
func RecordKVCache(cacheType string, hit bool) {
	if hit {
		KVCacheHits.WithLabelValues(cacheType).Inc()
	} else {
		KVCacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// RecordEntityResolution records the outcome of one resolution attempt.
func RecordEntityResolution(method string, duration time.Duration, resolved bool) {
	EntityResolutionDuration.WithLabelValues(method).Observe(duration.Seconds())
	outcome := "unresolved"
	if resolved {
		outcome = "resolved"
	}
	EntityResolutionsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordIngestBatch records an ingestion batch run.
func RecordIngestBatch(scheduler string, duration time.Duration) {
	IngestBatchDuration.WithLabelValues(scheduler).Observe(duration.Seconds())
}

// RecordSearchStage records the duration of one search pipeline stage.
func RecordSearchStage(stage string, duration time.Duration) {
	SearchRequestDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTraining records a LoRA adapter training run.
func RecordTraining(duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	TrainingDuration.WithLabelValues(result).Observe(duration.Seconds())
	if err == nil {
		TrainingUsersTrained.Inc()
	}
}

// RecordCircuitBreakerRequest records the outcome of one circuit-breaker-guarded call.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}
