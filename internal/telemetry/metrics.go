// Package telemetry provides application-level observability for the roster service.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<TR_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Graph $batch calls and their sub-request status classes
//   - Enrichment fetch outcomes per data category
//   - Roster size and build latency
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics: labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Error rate (%):  sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency:     histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Graph metrics: recorded by the batch client.
//
// GraphBatchRequestsTotal counts $batch HTTP exchanges by outcome ("ok" or
// "error"). GraphSubrequestsTotal counts individual sub-responses by
// correlation kind and status class ("2xx", "4xx", "5xx", "missing").
//
// Example PromQL queries:
//   - Throttling by kind:  sum by (kind) (rate(graph_subrequests_total{status="4xx"}[5m]))
//   - Alert expression:    increase(graph_batch_requests_total{outcome="error"}[10m]) > 5
var (
	GraphBatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_batch_requests_total",
			Help: "Total number of Microsoft Graph $batch calls, by outcome.",
		},
		[]string{"outcome"},
	)

	GraphSubrequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_subrequests_total",
			Help: "Total number of Graph batch sub-responses, by correlation kind and status class.",
		},
		[]string{"kind", "status"},
	)
)

// Roster metrics: recorded by the aggregation engine.
//
// EnrichmentFetchesTotal has labels {category, outcome}; category is one of
// "profile", "presence", "timezone" and outcome one of "fetched", "empty",
// "failed". A rising "failed" share means degraded rosters are being served.
var (
	EnrichmentFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_enrichment_fetches_total",
			Help: "Total number of enrichment fetches, by data category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	RosterMembers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roster_members",
			Help:    "Number of members in each roster returned.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	RosterBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roster_build_duration_seconds",
			Help:    "Time spent resolving and enriching a roster.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
