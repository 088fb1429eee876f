package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the authorization store.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	decisionsTotal   *prometheus.CounterVec
	resolveDuration  prometheus.Histogram
	seedPhasesTotal  *prometheus.CounterVec
	cacheEventsTotal *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grantline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantline_authz_decisions_total",
		Help: "Authorization decisions by outcome (allow, deny, error).",
	}, []string{"outcome"})
	resolve := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grantline_resolve_duration_seconds",
		Help:    "Effective permission resolution duration.",
		Buckets: prometheus.DefBuckets,
	})
	seedPhases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantline_seed_phase_total",
		Help: "Seeder phase executions by phase and result.",
	}, []string{"phase", "result"})
	cacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grantline_resolver_cache_events_total",
		Help: "Resolver cache hits, misses and invalidations.",
	}, []string{"event"})
	registry.MustRegister(requests, duration, decisions, resolve, seedPhases, cacheEvents)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		decisionsTotal:   decisions,
		resolveDuration:  resolve,
		seedPhasesTotal:  seedPhases,
		cacheEventsTotal: cacheEvents,
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

// ObserveDecision records an authorization decision outcome.
func (m *Metrics) ObserveDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResolve records the duration of one effective permission resolution.
func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

// ObserveSeedPhase records a seeder phase result.
func (m *Metrics) ObserveSeedPhase(phase, result string) {
	if m == nil {
		return
	}
	m.seedPhasesTotal.WithLabelValues(phase, result).Inc()
}

// ObserveCacheEvent records a resolver cache hit, miss or invalidation.
func (m *Metrics) ObserveCacheEvent(event string) {
	if m == nil {
		return
	}
	m.cacheEventsTotal.WithLabelValues(event).Inc()
}

// Middleware records metrics for every HTTP request.
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

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
