package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	conflictRetries prometheus.Counter
	auditRetries    prometheus.Counter
}

// NewMetrics initialises the registry and engine metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authz_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_request_submissions_total",
		Help: "Approval request submissions by operation type and initial status.",
	}, []string{"operation", "status"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Approval step decisions by outcome.",
	}, []string{"decision"})
	conflictRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_decision_conflict_retries_total",
		Help: "Decide calls retried after an optimistic concurrency conflict.",
	})
	auditRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_audit_retries_total",
		Help: "Audit writes deferred to the asynchronous retry queue.",
	})
	registry.MustRegister(requests, duration, submissions, decisions, conflictRetries, auditRetries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		submissions:     submissions,
		decisions:       decisions,
		conflictRetries: conflictRetries,
		auditRetries:    auditRetries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// RecordSubmission counts one approval request submission.
func (m *Metrics) RecordSubmission(operation, status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(operation, status).Inc()
}

// RecordDecision counts one approval step decision.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordConflictRetry counts one automatic retry after a version conflict.
func (m *Metrics) RecordConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

// RecordAuditRetry counts one audit write deferred to the retry queue.
func (m *Metrics) RecordAuditRetry() {
	if m == nil {
		return
	}
	m.auditRetries.Inc()
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
