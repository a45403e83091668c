// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus
client library, exposing metrics for the store, vector store, KV cache,
entity resolution, ingestion schedulers, search pipeline, personalization
training, sync engine, offline queue, and circuit breakers.

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format.

# Usage Example

	import (
	    "github.com/streamforge/discovery/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.RecordStoreQuery("select", "content", elapsed, err)
	    metrics.RecordEntityResolution("fuzzy-title-year", elapsed, resolved)
	}

# Cardinality Management

Label sets are bounded by construction: scheduler/method/operation names come
from fixed enums in internal/models, never from free-form user input.
*/
package metrics
