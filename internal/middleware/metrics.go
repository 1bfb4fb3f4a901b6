package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	strokesAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strokes_appended_total",
			Help: "Total number of strokes committed to the ledger",
		},
		[]string{"author_role", "duplicate"},
	)

	eventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of broadcast events published",
		},
	)

	heartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeats_total",
			Help: "Total number of presence heartbeats received",
		},
	)
)

// MetricsMiddleware collects Prometheus metrics for every HTTP request.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		c.Next()

		httpRequestsInFlight.Dec()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// RecordStrokeAppend counts a committed (or replayed) stroke append.
func RecordStrokeAppend(authorRole string, duplicate bool) {
	dup := "false"
	if duplicate {
		dup = "true"
	}
	strokesAppendedTotal.WithLabelValues(authorRole, dup).Inc()
}

// RecordEventPublished counts a broadcast-channel publish.
func RecordEventPublished() {
	eventsPublishedTotal.Inc()
}

// RecordHeartbeat counts a presence heartbeat.
func RecordHeartbeat() {
	heartbeatsTotal.Inc()
}
