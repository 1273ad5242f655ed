// Package metrics holds the Prometheus collectors shared by the services and
// the HTTP layer. All collectors are registered on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	ResultPositiveHit = "positive_hit"
	ResultNegativeHit = "negative_hit"
	ResultMiss        = "miss"
)

var (
	// CacheLookups counts Resolve cache lookups by outcome.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_lookups_total",
			Help: "Short link cache lookups by result.",
		},
		[]string{"result"},
	)

	// FilterRejections counts lookups answered "definitely absent" by the
	// existence filter before reaching the store.
	FilterRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_filter_rejections_total",
			Help: "Resolutions short-circuited by the existence filter.",
		},
	)

	CodeCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_code_collisions_total",
			Help: "Generated candidates rejected because the filter reported them as taken.",
		},
	)

	// LockAcquisitions counts lock attempts by mode (blocking/try) and result.
	LockAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_lock_acquisitions_total",
			Help: "Distributed lock acquisitions by mode and result.",
		},
		[]string{"mode", "result"},
	)

	// DegradedOps counts cache, filter and lock operations that failed and
	// were skipped so the request could continue.
	DegradedOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_degraded_operations_total",
			Help: "Infrastructure failures tolerated by failing open.",
		},
		[]string{"component", "op"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookups,
		FilterRejections,
		CodeCollisions,
		LockAcquisitions,
		DegradedOps,
		HTTPRequests,
		HTTPLatency,
		HTTPInflight,
	)
}

// Degraded records a tolerated failure of component during op.
func Degraded(component, op string) {
	DegradedOps.WithLabelValues(component, op).Inc()
}
