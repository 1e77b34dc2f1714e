// Package metrics exposes Prometheus instrumentation for the auth service
// and the listener that serves /metrics and /healthz.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for auth operations.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	authOps      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		authOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenkeeper",
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenkeeper",
			Name:      "cache_lookups_total",
			Help:      "Cache-aside lookups by result.",
		}, []string{"result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokenkeeper",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokenkeeper",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (m *Metrics) AuthOutcome(op, outcome string) {
	if m == nil {
		return
	}
	m.authOps.WithLabelValues(op, outcome).Inc()
}

// AuthCounter exposes one auth series for inspection.
func (m *Metrics) AuthCounter(op, outcome string) prometheus.Counter {
	if m == nil {
		return detachedCounter()
	}
	return m.authOps.WithLabelValues(op, outcome)
}

// HTTPCounter exposes one request series for inspection.
func (m *Metrics) HTTPCounter(route, method, code string) prometheus.Counter {
	if m == nil {
		return detachedCounter()
	}
	return m.httpRequests.WithLabelValues(route, method, code)
}

// detachedCounter is registered nowhere and always reads zero for a nil *Metrics.
func detachedCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tokenkeeper", Name: "detached"})
}

// CacheResult records hit, miss or error.
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts and times requests under the fixed route label.
func (m *Metrics) Middleware(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
