// Package metrics exposes Prometheus instrumentation for the gallery service
// and an HTTP middleware that records request counts and latency.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the process's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	derivativeTime  *prometheus.Histogram
	pregenQueue     prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide Metrics instance, creating it on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_errors_total",
			Help: "Total errors by category.",
		}, []string{"category"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_derivative_cache_total",
			Help: "Derivative cache lookups by outcome (hit/miss).",
		}, []string{"outcome"}),
		pregenQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gallery_pregenerate_queue_depth",
			Help: "Number of images queued for pre-generation.",
		}),
	}

	derivativeTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gallery_derivative_generation_seconds",
		Help:    "Time to decode+resize+encode one derivative.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.derivativeTime = &derivativeTime

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.cacheHits,
		derivativeTime,
		m.pregenQueue,
	)

	return m
}

// Handler returns an http.HandlerFunc serving the registry in the Prometheus text format.
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return h.ServeHTTP
}

// IncError increments the error counter for the given category.
func (m *Metrics) IncError(category string) {
	m.errorsTotal.WithLabelValues(category).Inc()
}

// ObserveCacheOutcome records a derivative cache hit or miss.
func (m *Metrics) ObserveCacheOutcome(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheHits.WithLabelValues(outcome).Inc()
}

// ObserveDerivativeDuration records how long a derivative generation took.
func (m *Metrics) ObserveDerivativeDuration(d time.Duration) {
	(*m.derivativeTime).Observe(d.Seconds())
}

// SetPregenerateQueueDepth reports the current pre-generation backlog size.
func (m *Metrics) SetPregenerateQueueDepth(n int) {
	m.pregenQueue.Set(float64(n))
}

// Middleware wraps an http.Handler with request-count and latency instrumentation.
func Middleware(next http.Handler) http.Handler {
	m := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		path := r.URL.Path
		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
