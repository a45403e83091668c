// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offlinequeue is the durable FIFO queue a device drains when it
// comes back online after being disconnected: watchlist and progress
// mutations and remote device commands are enqueued locally while
// offline and replayed, in order, once connectivity returns.
//
// Durability is provided by internal/wal's BadgerDB-backed write-ahead
// log: an item survives a process restart the same way an outbound
// event survives one on the ingest side. Replay delivery is at-least-once
// and bounded to three attempts per item; downstream CRDT/LWW merge
// semantics make duplicate delivery safe.
package offlinequeue
