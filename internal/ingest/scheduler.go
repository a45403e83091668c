// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"time"

	"github.com/streamforge/discovery/internal/bandwidth"
	"github.com/streamforge/discovery/internal/entity"
	"github.com/streamforge/discovery/internal/logging"
	"github.com/streamforge/discovery/internal/metrics"
)

// Regions is the set of regions every scheduler iterates, typically the
// deployment's configured storefronts (e.g. "US", "GB", "DE").
type Regions []string

// scheduler is the shared tick-loop shape each of the four concrete
// schedulers wraps: tick, for each (source, region) do a gated operation.
type scheduler struct {
	name     string
	interval time.Duration
	registry *Registry
	regions  Regions
	limiter  *bandwidth.SourceLimiter
	run      func(ctx context.Context, source Source, region string) error
}

// Serve implements suture.Service. It ticks on the configured interval,
// running one gated operation per (source, region) pair per tick, and
// returns when ctx is cancelled.
func (s *scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	start := time.Now()
	for _, src := range s.registry.All() {
		for _, region := range s.regions {
			if err := s.limiter.Wait(ctx, src.Name()); err != nil {
				logging.Error().Err(err).Str("scheduler", s.name).Str("source", src.Name()).Msg("rate limiter wait aborted")
				continue
			}
			if err := s.run(ctx, src, region); err != nil {
				metrics.IngestErrors.WithLabelValues(s.name, src.Name(), "run_error").Inc()
				logging.Error().Err(err).Str("scheduler", s.name).Str("source", src.Name()).Str("region", region).Msg("ingestion run failed")
			}
		}
	}
	metrics.RecordIngestBatch(s.name, time.Since(start))
}

// CatalogRefreshScheduler performs a full delta pull per (source, region)
// on a long interval (default 6h), resolving and upserting every record.
type CatalogRefreshScheduler struct {
	*scheduler
	writer   *Writer
	resolver *entity.Resolver
	lastRun  map[string]time.Time
}

// NewCatalogRefreshScheduler builds the catalog-refresh service.
func NewCatalogRefreshScheduler(interval time.Duration, registry *Registry, regions Regions, limiter *bandwidth.SourceLimiter, writer *Writer) *CatalogRefreshScheduler {
	c := &CatalogRefreshScheduler{writer: writer, lastRun: make(map[string]time.Time)}
	c.scheduler = &scheduler{
		name:     "catalog_refresh",
		interval: interval,
		registry: registry,
		regions:  regions,
		limiter:  limiter,
		run:      c.runOne,
	}
	return c
}

func (c *CatalogRefreshScheduler) runOne(ctx context.Context, src Source, region string) error {
	key := src.Name() + ":" + region
	since := c.lastRun[key]

	records, err := src.FetchCatalogDelta(ctx, since, region)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		c.lastRun[key] = time.Now()
		return nil
	}

	if err := c.writer.WriteBatch(ctx, records, region, nil); err != nil {
		return err
	}

	metrics.IngestItemsProcessed.WithLabelValues(c.name, src.Name()).Add(float64(len(records)))
	c.lastRun[key] = time.Now()
	return nil
}

// AvailabilitySyncScheduler refreshes pricing/availability windows only,
// on a short interval (default 1h), without re-resolving entities.
type AvailabilitySyncScheduler struct {
	*scheduler
	store Store
}

// NewAvailabilitySyncScheduler builds the availability-sync service.
func NewAvailabilitySyncScheduler(interval time.Duration, registry *Registry, regions Regions, limiter *bandwidth.SourceLimiter, s Store) *AvailabilitySyncScheduler {
	a := &AvailabilitySyncScheduler{store: s}
	a.scheduler = &scheduler{
		name:     "availability_sync",
		interval: interval,
		registry: registry,
		regions:  regions,
		limiter:  limiter,
		run:      a.runOne,
	}
	return a
}

func (a *AvailabilitySyncScheduler) runOne(ctx context.Context, src Source, region string) error {
	records, err := src.FetchCatalogDelta(ctx, time.Time{}, region)
	if err != nil {
		return err
	}

	for _, rec := range records {
		contentID, err := a.store.FindByPlatformID(ctx, src.Name(), rec.PlatformContentID)
		if err != nil {
			// Unknown to this deployment yet; the catalog-refresh scheduler
			// will pick it up and resolve an entity on its own cadence.
			continue
		}
		for _, av := range rec.Availability {
			if err := a.store.UpsertAvailability(ctx, availabilityRow(contentID, src.Name(), av)); err != nil {
				return err
			}
		}
	}
	metrics.IngestItemsProcessed.WithLabelValues(a.name, src.Name()).Add(float64(len(records)))
	return nil
}
