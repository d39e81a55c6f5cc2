package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionOperationsTotal   *prometheus.CounterVec
	SessionOperationDuration *prometheus.HistogramVec
	AuthRetriesTotal         *prometheus.CounterVec
	StaleResponsesTotal      *prometheus.CounterVec

	// Guard metrics
	GuardDecisionsTotal *prometheus.CounterVec

	// Cache metrics
	UserCacheEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SessionOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_session_operations_total",
				Help: "Total number of session operations by outcome",
			},
			[]string{"operation", "status"},
		),
		SessionOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_session_operation_duration_seconds",
				Help:    "Session operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AuthRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_auth_retries_total",
				Help: "Requests replayed after an unauthorized response, by outcome",
			},
			[]string{"outcome"},
		),
		StaleResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_session_stale_responses_total",
				Help: "Identity service responses discarded because a logout superseded them",
			},
			[]string{"operation"},
		),

		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_guard_decisions_total",
				Help: "Route guard decisions by outcome",
			},
			[]string{"outcome"},
		),

		UserCacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_user_cache_events_total",
				Help: "User directory cache hits, misses and invalidations",
			},
			[]string{"event"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.SessionOperationsTotal,
			m.SessionOperationDuration,
			m.AuthRetriesTotal,
			m.StaleResponsesTotal,
			m.GuardDecisionsTotal,
			m.UserCacheEventsTotal,
		)
	}

	return m
}

// ObserveSessionOperation records the outcome and latency of a session operation.
// Safe to call on a nil receiver.
func (m *Metrics) ObserveSessionOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SessionOperationsTotal.WithLabelValues(operation, status).Inc()
	m.SessionOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncAuthRetry counts a refresh-and-replay cycle. Safe to call on a nil receiver.
func (m *Metrics) IncAuthRetry(outcome string) {
	if m == nil {
		return
	}
	m.AuthRetriesTotal.WithLabelValues(outcome).Inc()
}

// IncStaleResponse counts a discarded response. Safe to call on a nil receiver.
func (m *Metrics) IncStaleResponse(operation string) {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.WithLabelValues(operation).Inc()
}

// IncGuardDecision counts a route guard decision. Safe to call on a nil receiver.
func (m *Metrics) IncGuardDecision(outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

// IncUserCache counts a user cache event. Safe to call on a nil receiver.
func (m *Metrics) IncUserCache(event string) {
	if m == nil {
		return
	}
	m.UserCacheEventsTotal.WithLabelValues(event).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware creates middleware that records HTTP metrics.
// The path label uses the matched mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the Prometheus metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
