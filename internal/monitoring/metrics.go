// Package monitoring exposes Prometheus metrics for the HTTP surface and the
// check pipeline, and raises webhook alerts when upstream services degrade.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/resilience"
)

const namespace = "misintel"

// Metrics records request and pipeline metrics in its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	checks           *prometheus.CounterVec
	checkDuration    *prometheus.HistogramVec
	evidence         *prometheus.CounterVec
	evidenceDuration *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	rateLimited      prometheus.Counter

	window *Collector
}

// New constructs Metrics with default histograms and counters.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		window:   NewCollector(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "total",
			Help:      "Completed checks by input kind and the stage that produced the result.",
		}, []string{"kind", "path"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "duration_seconds",
			Help:      "End-to-end check latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"kind"}),
		evidence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "calls_total",
			Help:      "Evidence client calls by service and outcome.",
		}, []string{"service", "status"}),
		evidenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "duration_seconds",
			Help:      "Evidence client latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state per service (0 closed, 1 open, 2 half-open).",
		}, []string{"service"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.requestDuration, m.requestTotal, m.checks, m.checkDuration,
		m.evidence, m.evidenceDuration, m.breakerState, m.rateLimited,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Window returns the collector fed by the pipeline observers.
func (m *Metrics) Window() *Collector { return m.window }

// InstrumentHandler wraps the provided handler to record HTTP metrics. Paths
// are labelled by chi route pattern so unmatched URLs share one series.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := strconv.Itoa(rw.status)
		m.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// ObserveCheck records a completed check.
func (m *Metrics) ObserveCheck(kind model.InputKind, path analysis.Path, elapsed time.Duration) {
	m.checks.WithLabelValues(string(kind), string(path)).Inc()
	m.checkDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	m.window.RecordCheck(path)
}

// ObserveEvidence records one evidence client call.
func (m *Metrics) ObserveEvidence(service string, status model.OutcomeStatus, elapsed time.Duration) {
	m.evidence.WithLabelValues(service, string(status)).Inc()
	if status != model.StatusNotConfigured {
		m.evidenceDuration.WithLabelValues(service).Observe(elapsed.Seconds())
	}
	m.window.RecordEvidence(service, status)
}

// ObserveBreaker records a circuit breaker transition.
func (m *Metrics) ObserveBreaker(service string, _, to resilience.State) {
	m.breakerState.WithLabelValues(service).Set(float64(to))
	if to == resilience.Open {
		m.window.RecordBreakerOpen(service)
	}
}

// ObserveRateLimited counts a rejected request.
func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
