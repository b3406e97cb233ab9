// Package middleware provides the Gin HTTP middleware of the roster service.
// Everything here is registered in internal/api/router.go ahead of the route
// handlers so every request is covered.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/team-roster/team-roster/internal/telemetry"
)

// MetricsMiddleware returns a Gin handler that records two Prometheus metrics for every
// request that passes through the router.
//
// Recorded metrics:
//   - http_requests_total{method, path, status}    CounterVec
//   - http_request_duration_seconds{method, path}  HistogramVec
//
// The path label is the matched Gin route template from c.FullPath() (e.g.
// /api/GetTeamDetails) rather than the raw URL, so query strings carrying user
// ids never become label values. Unmatched requests use "<no-route>".
//
// Register AFTER gin.Recovery() and RequestIDMiddleware so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
