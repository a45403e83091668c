// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wal provides a durable Write-Ahead Log (WAL) using BadgerDB.
//
// The WAL guarantees no event loss by persisting events to disk before
// they're considered delivered. Entries survive process crashes, power
// failures, and broker outages.
//
// # Architecture
//
// The WAL sits underneath internal/offlinequeue as its durable backing
// store: a sync or command delta that can't reach the broker is written
// here first, and confirmed (removed) only once internal/offlinequeue's
// own replay scheduler successfully redelivers it.
//
//	Delta → WAL Write (ACID, fsync) → queued for replay
//	                                       ↓ (on successful redelivery)
//	                                 WAL Confirm (entry cleaned up)
//	                                       ↓ (on exhausted retries)
//	                                 WAL Confirm (entry dropped)
//
// # Components
//
//   - BadgerWAL: Core WAL implementation used by this package's consumers
//   - RetryLoop / Compactor: background loops available for a caller that
//     wants automatic retry/compaction; internal/offlinequeue does not use
//     them — it owns its own FIFO replay and retry-count bookkeeping on
//     top of the plain Write/Confirm/GetPending contract (see BackingWAL
//     in internal/offlinequeue)
//
// # Usage
//
// Basic usage:
//
//	// Create configuration
//	cfg := wal.LoadConfig()
//
//	// Open WAL
//	w, err := wal.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	// Write an entry before it is considered durable
//	entryID, err := w.Write(ctx, delta)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... hand the entry to a replay/redelivery loop ...
//
//	// Confirm once redelivered (or dropped after exhausting retries)
//	if err := w.Confirm(ctx, entryID); err != nil {
//	    log.Printf("WAL confirm failed: %v", err)
//	}
//
// # Build Tags
//
// The WAL is optional and can be disabled via build tags:
//
//	# Build with WAL
//	go build -tags wal ./cmd/server
//
//	# Build without WAL (no-op stub)
//	go build ./cmd/server
//
// # Configuration
//
// Configuration is loaded from environment variables:
//
//	WAL_ENABLED=true         # Run config validation (default: true)
//	WAL_PATH=/data/wal       # Storage directory
//	WAL_SYNC_WRITES=true     # Force fsync (durability)
//	WAL_RETRY_INTERVAL=30s   # Retry loop interval
//	WAL_MAX_RETRIES=100      # Max attempts before giving up
//	WAL_RETRY_BACKOFF=5s     # Initial backoff duration
//	WAL_COMPACT_INTERVAL=1h  # Compaction interval
//	WAL_ENTRY_TTL=168h       # Entry time-to-live (7 days)
//
// # Why BadgerDB
//
// BadgerDB was chosen for:
//   - Pure Go (no CGO required)
//   - ACID compliance with checksums
//   - Concurrent writes (LSM-tree)
//   - Designed for write-heavy workloads
//   - Built-in TTL support
//
// Alternatives considered:
//   - bbolt: Single-writer limitation
//   - Append-only file: Corruption risk on power loss
//   - NATS KV: Requires network connection
//
// # Metrics
//
// Prometheus metrics are exported for monitoring:
//
//	wal_writes_total           # Total write operations
//	wal_confirms_total         # Total confirm operations
//	wal_retries_total          # Total retry attempts
//	wal_pending_entries        # Current pending count
//	wal_db_size_bytes          # Database size
//	wal_write_latency_seconds  # Write latency histogram
//
// # Thread Safety
//
// All WAL operations are thread-safe. Multiple goroutines can
// call Write, Confirm, and other methods concurrently.
package wal
