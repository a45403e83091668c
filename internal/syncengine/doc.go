// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package syncengine implements the CRDT sync core described in spec.md
// §4.E: an observed-remove set for the watchlist, a last-writer-wins
// register for playback position, both ordered by a hybrid logical clock,
// and NATS-backed transport over the per-user "user.<id>.sync" channel.
//
// Every local mutation is applied to internal/store and published as a
// delta; every received delta is merged the same way a local mutation
// would be, making apply-order commutative regardless of which device
// originated it. Publishes retry with exponential backoff (base 100ms,
// up to 3 attempts); a device skips any received delta carrying its own
// device id, so it never double-applies its own echoed delta.
package syncengine
