// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest pulls catalog and availability data from per-platform
// sources and writes resolved content into the canonical store and vector
// store.
//
// A Source implements FetchCatalogDelta for one platform; a Registry holds
// the configured set. Four independent schedulers drive the pipeline on
// their own cadence: CatalogRefreshScheduler performs a full resolve-and-
// upsert pass, AvailabilitySyncScheduler refreshes pricing/availability
// windows without re-resolving entities, ExpiringContentScheduler announces
// titles leaving a platform soon, and MetadataEnrichmentScheduler
// regenerates embeddings and quality scores for stale rows. The catalog-
// refresh and availability-sync schedulers, which call sources, are gated by
// a per-source token bucket so a slow or rate-limited upstream cannot starve
// the others; the expiring-content and metadata-enrichment schedulers call
// no source and are not rate-limited.
package ingest
