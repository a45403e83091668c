// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the streamforge discovery backend.
//
// This process owns the background half of the system: the four
// ingestion schedulers that keep the canonical store and vector store in
// sync with external catalog sources, the per-user LoRA training loop,
// and the offline-sync-queue replay loop. It opens every shared
// dependency (the relational store, the vector store, the KV cache, the
// NATS broker) and hosts the always-on services in a supervision tree.
//
// Request-path components — the hybrid search engine, the per-connection
// CRDT sync engine, and the remote command router — are constructed by
// the externally-owned HTTP/WebSocket transport layer from the shared
// dependencies this process exposes no further than its constructors;
// serving individual connections and requests is out of this repo's
// scope (see SPEC_FULL.md's concurrency and resource model).
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: layered defaults, optional YAML file, environment (Koanf v2)
//  2. Logging: zerolog, bridged to slog for the supervision tree
//  3. Store: DuckDB-backed canonical relational store
//  4. Vector store: Qdrant content/user/item embedding collections
//  5. KV cache: Redis-backed response/intent/entity-resolution cache
//  6. Broker: NATS JetStream publisher (cross-device sync, command fan-out)
//  7. Durable offline queue: BadgerDB write-ahead log
//  8. Domain components: entity resolver, embedding client, search config
//  9. Ingestion schedulers, personalization training, queue replay
//  10. Supervision tree: data sub-tree hosts the above
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional config file at
// CONFIG_PATH, and built-in defaults. See internal/config for the full
// key set.
//
// # Signal Handling
//
// The process handles graceful shutdown on SIGINT and SIGTERM, giving the
// supervision tree up to its configured ShutdownTimeout to drain.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/discovery/internal/bandwidth"
	"github.com/streamforge/discovery/internal/broker"
	"github.com/streamforge/discovery/internal/config"
	"github.com/streamforge/discovery/internal/embedclient"
	"github.com/streamforge/discovery/internal/entity"
	"github.com/streamforge/discovery/internal/ingest"
	"github.com/streamforge/discovery/internal/kvcache"
	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/offlinequeue"
	"github.com/streamforge/discovery/internal/personalize"
	"github.com/streamforge/discovery/internal/search"
	"github.com/streamforge/discovery/internal/store"
	"github.com/streamforge/discovery/internal/supervisor"
	"github.com/streamforge/discovery/internal/vectorstore"
	"github.com/streamforge/discovery/internal/wal"
)

// shutdownGrace bounds how long the metrics HTTP server is given to drain
// in-flight scrapes once the supervisor tree starts shutting down.
const shutdownGrace = 5 * time.Second

func main() {
	cfg, err := config.LoadWithKoanf(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().Msg("starting discovery backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	vs, err := vectorstore.Open(ctx, cfg.VectorStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open vector store")
	}
	defer func() {
		if err := vs.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing vector store")
		}
	}()

	kv, err := kvcache.Open(cfg.KVCache)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open kv cache")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing kv cache")
		}
	}()

	pub, err := broker.NewPublisher(cfg.Broker)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open broker publisher")
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing broker publisher")
		}
	}()

	walCfg := wal.DefaultConfig()
	walCfg.Path = cfg.OfflineQueue.Path
	offlineWAL, err := wal.Open(&walCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open offline queue wal")
	}
	defer func() {
		if err := offlineWAL.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing offline queue wal")
		}
	}()
	offlineQueue := offlinequeue.New(offlineWAL, cfg.OfflineQueue.MaxRetries)

	resolver := entity.New(st)
	embedder := embedclient.New(cfg.Embedding)

	genres, err := st.ListAllGenres(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load genre taxonomy")
	}
	taxonomy := personalize.BuildTaxonomy([][]string{genres})

	adapterRegistry := personalize.NewRegistry(st)
	loraConfig := personalize.Config{
		Rank:           cfg.LoRA.Rank,
		Regularization: cfg.LoRA.Regularization,
		Alpha:          cfg.LoRA.Alpha,
		Iterations:     cfg.LoRA.Iterations,
		Workers:        cfg.LoRA.Workers,
		FallbackTopK:   cfg.LoRA.FallbackTopK,
		SimilarityMin:  cfg.LoRA.SimilarityMin,
	}
	ranker := personalize.NewRanker(adapterRegistry, st, taxonomy, cfg.LoRA.FallbackTopK, cfg.LoRA.SimilarityMin)
	trainingScheduler := personalize.NewTrainingScheduler(st, adapterRegistry, ranker, loraConfig, cfg.Schedule.MetadataEnrichment)

	// The hybrid search engine is constructed here because its dependencies
	// (vector store, store, cache, embedder, ranker) are all process-owned,
	// but it is not served from this process: request handling is the
	// externally-owned HTTP/WebSocket transport layer's job. That layer
	// constructs its own reference to searchEngine's dependencies, or this
	// value is handed to it through whatever wiring mechanism joins the two
	// processes/packages together.
	rankingDefaults := search.RankingWeights{
		Vector:    cfg.RankingDefaults.Vector,
		Keyword:   cfg.RankingDefaults.Keyword,
		Quality:   cfg.RankingDefaults.Quality,
		Freshness: cfg.RankingDefaults.Freshness,
		RRFK:      cfg.RankingDefaults.RRFK,
	}
	rankingConfig := search.NewConfigStore(rankingDefaults)
	_ = search.New(vs, st, kv, embedder, ranker, st, rankingConfig, cfg.Request.MaxPageSize)

	// No Source implementations ship in this core; platform-specific
	// catalog sources (TMDb, TVDB, a storefront feed, ...) are
	// deployment-specific plugins registered here before startup. An
	// empty registry still runs every scheduler's tick loop safely — it
	// simply has nothing to iterate until a source is registered.
	sourceRegistry := ingest.NewRegistry()
	regions := ingest.Regions{"US"}
	sourceLimiter := bandwidth.NewSourceLimiter(cfg.Bandwidth.RatePerSecond, cfg.Bandwidth.Burst)
	writer := ingest.NewWriter(st, vs, resolver, "")

	catalogScheduler := ingest.NewCatalogRefreshScheduler(cfg.Schedule.CatalogRefresh, sourceRegistry, regions, sourceLimiter, writer)
	availabilityScheduler := ingest.NewAvailabilitySyncScheduler(cfg.Schedule.AvailabilitySync, sourceRegistry, regions, sourceLimiter, st)
	expiringScheduler := ingest.NewExpiringContentScheduler(cfg.Schedule.ExpiringContent, st, pub, broker.TopicContentExpiring)
	enrichmentScheduler := ingest.NewMetadataEnrichmentScheduler(cfg.Schedule.MetadataEnrichment, cfg.Schedule.StalenessThreshold, cfg.Schedule.BatchSize, st, vs, embedder)

	replayScheduler := offlinequeue.NewReplayScheduler(offlineQueue, offlineReplayer(pub), 30*time.Second)

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddDataService(catalogScheduler)
	tree.AddDataService(availabilityScheduler)
	tree.AddDataService(expiringScheduler)
	tree.AddDataService(enrichmentScheduler)
	tree.AddDataService(trainingScheduler)
	tree.AddDataService(replayScheduler)
	logging.Info().Msg("ingestion, personalization, and queue-replay services added to supervisor tree")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	tree.AddAPIService(newMetricsService(cfg.Metrics.Addr, metricsMux))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("discovery backend stopped gracefully")
}

// offlineReplayer builds the Replayer the offline-queue replay scheduler
// uses to redeliver a queued operation: it unwraps the item's
// offlinequeue.Envelope (written by whichever caller enqueued it) and
// re-publishes the envelope's body to its addressed topic, letting the
// receiving device's CRDT merge handle idempotency the same way the sync
// engine and remote router already assume for any other at-least-once
// redelivery.
func offlineReplayer(pub *broker.Publisher) offlinequeue.Replayer {
	return func(ctx context.Context, item offlinequeue.Item) error {
		var env offlinequeue.Envelope
		if err := json.Unmarshal(item.Payload, &env); err != nil {
			return fmt.Errorf("decode offline queue envelope: %w", err)
		}
		msg := message.NewMessage(uuid.NewString(), env.Body)
		return pub.Publish(ctx, env.Topic, msg)
	}
}
