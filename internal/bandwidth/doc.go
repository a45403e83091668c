// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bandwidth provides per-source ingestion rate limiting so that a
// single slow or quota-constrained content source cannot starve the
// schedulers from making progress against the others. Each source name
// gets its own token bucket, built on golang.org/x/time/rate.
package bandwidth
