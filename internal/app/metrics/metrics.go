// Package metrics defines the Prometheus collectors exposed by the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	sessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Total number of request database sessions by final outcome.",
		},
		[]string{"outcome"},
	)

	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Lifetime of request database sessions from begin to release.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result.",
		},
		[]string{"resource", "result"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"tier"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		sessionOutcomes,
		sessionDuration,
		cacheLookups,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed request against the route template.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementInFlight bumps the in-flight gauge.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight drops the in-flight gauge.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordSessionOutcome records a finished request session. Outcome is one of
// "committed" or "rolled_back".
func RecordSessionOutcome(outcome string, duration time.Duration) {
	sessionOutcomes.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a cache hit or miss for the resource.
func RecordCacheLookup(resource string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(resource, result).Inc()
}

// RecordRateLimited records a request rejected by the named limiter tier.
func RecordRateLimited(tier string) {
	rateLimited.WithLabelValues(tier).Inc()
}
