// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package middleware provides the HTTP middleware of the status server.

  - RequestID: reuses or generates an X-Request-ID and stores it, with a
    fresh correlation ID, in the request context for logging
  - PrometheusMetrics: counts requests and observes their latency by chi
    route pattern, so path parameters do not explode label cardinality

Both are plain func(http.Handler) http.Handler values for chi's r.Use.
*/
package middleware
