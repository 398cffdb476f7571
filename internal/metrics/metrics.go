// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the vote pipeline. Label sets stay small: vote outcomes and route paths
// only, never voter keys or tool ids.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankedbyus",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankedbyus",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	votesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankedbyus",
			Name:      "votes_processed_total",
			Help:      "Total number of vote submissions processed, by outcome.",
		},
		[]string{"outcome"},
	)

	voteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rankedbyus",
			Name:      "vote_processing_duration_seconds",
			Help:      "Duration of vote ledger mutations in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)
)

// VoteProcessed counts one vote submission by outcome
// (created, flipped, retracted, noop, duplicate, invalid, unknown_tool, error).
func VoteProcessed(outcome string) {
	votesProcessed.WithLabelValues(outcome).Inc()
}

// VoteDuration records how long a ledger mutation took.
func VoteDuration(d time.Duration) {
	voteDuration.Observe(d.Seconds())
}

// HTTPMiddleware instruments every request with count and latency, labeled by
// the registered route template (not the raw URL) to bound cardinality.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
