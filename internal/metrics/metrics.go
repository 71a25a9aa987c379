package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Application metrics
	CodeAllocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "short_code_allocations_total",
			Help: "Short code allocations by outcome (preferred, random, fallback, exhausted)",
		},
		[]string{"outcome"},
	)

	CodeAllocationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "short_code_allocation_attempts",
			Help:    "Random draws needed per successful allocation",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	URLResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_resolutions_total",
			Help: "Short code resolutions by result (ok, gone, missing)",
		},
		[]string{"result"},
	)

	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Authentication attempts by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// RecordHTTPMetrics records counters and latency for one HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
