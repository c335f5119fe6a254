package kurir

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the dispatch lifecycle
// and the pooling, caching and rate-limiting layers. Safe for concurrent
// use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries *prometheus.GaugeVec

	poolAcquisitions *prometheus.CounterVec
	poolSessions     *prometheus.GaugeVec

	rateLimitWaits        *prometheus.CounterVec
	rateLimitWaitDuration *prometheus.HistogramVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_requests_total",
				Help: "Total number of dispatched requests",
			},
			[]string{"method", "status_code", "host"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kurir_request_duration_seconds",
				Help:    "Duration of dispatched requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "host"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kurir_requests_in_flight",
				Help: "Number of requests currently being dispatched",
			},
			[]string{"method", "host"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_cache_hits_total",
				Help: "Total number of memory cache hits",
			},
			[]string{"method", "host"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_cache_misses_total",
				Help: "Total number of memory cache misses",
			},
			[]string{"method", "host"},
		),
		cacheEntries: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kurir_cache_entries",
				Help: "Current number of entries in the memory cache",
			},
			[]string{"name"},
		),
		poolAcquisitions: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_pool_acquisitions_total",
				Help: "Connection pool acquisition attempts by outcome",
			},
			[]string{"host", "outcome"},
		),
		poolSessions: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kurir_pool_sessions",
				Help: "Live pooled sessions (idle plus checked out) per host",
			},
			[]string{"host"},
		),
		rateLimitWaits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_rate_limit_waits_total",
				Help: "Total number of dispatches that waited on the rate limiter",
			},
			[]string{"host"},
		),
		rateLimitWaitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kurir_rate_limit_wait_duration_seconds",
				Help:    "Duration of rate limiter suspensions in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"host"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kurir_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type", "method", "host"},
		),
	}
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, host string) {
	mc.requestsInFlight.WithLabelValues(method, host).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, host string) {
	mc.requestsInFlight.WithLabelValues(method, host).Dec()
}

// RecordRequest records a completed dispatch with its final status code.
func (mc *MetricsCollector) RecordRequest(method, host string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, host).Inc()
	mc.requestDuration.WithLabelValues(method, code, host).Observe(duration.Seconds())
}

// RecordCacheHit records a memory cache hit.
func (mc *MetricsCollector) RecordCacheHit(method, host string) {
	mc.cacheHits.WithLabelValues(method, host).Inc()
}

// RecordCacheMiss records a memory cache miss.
func (mc *MetricsCollector) RecordCacheMiss(method, host string) {
	mc.cacheMisses.WithLabelValues(method, host).Inc()
}

// RecordCacheSize updates the cache entry gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, size int) {
	mc.cacheEntries.WithLabelValues(name).Set(float64(size))
}

// RecordPoolAcquisition records the outcome of one Acquire: "acquired" or
// "exhausted".
func (mc *MetricsCollector) RecordPoolAcquisition(host, outcome string) {
	mc.poolAcquisitions.WithLabelValues(host, outcome).Inc()
}

// RecordPoolSessions updates the live session gauge for host.
func (mc *MetricsCollector) RecordPoolSessions(host string, n int) {
	mc.poolSessions.WithLabelValues(host).Set(float64(n))
}

// RecordRateLimitWait records a rate-limit suspension.
func (mc *MetricsCollector) RecordRateLimitWait(host string, wait time.Duration) {
	mc.rateLimitWaits.WithLabelValues(host).Inc()
	mc.rateLimitWaitDuration.WithLabelValues(host).Observe(wait.Seconds())
}

// RecordError records an error by type.
func (mc *MetricsCollector) RecordError(errorType, method, host string) {
	mc.errorsTotal.WithLabelValues(errorType, method, host).Inc()
}
