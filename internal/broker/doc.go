// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package broker provides the pub/sub transport for cross-device sync and
search-quality telemetry, built on Watermill's NATS JetStream binding.

Topics:

  - user.<id>.sync    - CRDT sync operations fanned out to a user's devices
  - user.<id>.devices - device online/offline presence changes
  - content.*         - catalog change notifications from ingestion
  - search.query      - fire-and-forget search-event telemetry

Publish uses a gobreaker circuit breaker so a degraded NATS cluster fails
fast instead of blocking ingestion or sync-engine request paths. Subscribe
acks/nacks based on the handler's return value and lets JetStream's
redelivery policy (MaxDeliver/AckWait) handle retries.
*/
package broker
