// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote is the remote command router (spec.md §4.G): one
// device issues a playback or cast command targeting another of the
// user's registered devices, delivered over the same NATS transport
// internal/syncengine uses, with TTL expiry, capability validation, and
// pending-ack tracking swept after 30s.
package remote
