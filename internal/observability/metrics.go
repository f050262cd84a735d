package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one server instance. Each
// instance owns its registry so tests can build several servers.
type Metrics struct {
	registry         *prometheus.Registry
	checks           *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proof_compliance_checks_total",
			Help: "Compliance verdicts produced, by classifier and status",
		}, []string{"classifier", "status"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proof_compliance_fallbacks_total",
			Help: "Checks answered by the rule classifier, by reason",
		}, []string{"reason"}),
		upstreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proof_upstream_request_duration_seconds",
			Help:    "Duration of calls to the text-generation API",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proof_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proof_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveCheck records a produced verdict and, when the fallback answered,
// the reason.
func (m *Metrics) ObserveCheck(classifier, status, fallbackReason string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(classifier, status).Inc()
	if fallbackReason != "" {
		m.fallbacks.WithLabelValues(fallbackReason).Inc()
	}
}

// ObserveUpstream records the latency of one upstream call.
func (m *Metrics) ObserveUpstream(d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Checks exposes the verdict counter.
func (m *Metrics) Checks() *prometheus.CounterVec {
	return m.checks
}

// Fallbacks exposes the fallback counter.
func (m *Metrics) Fallbacks() *prometheus.CounterVec {
	return m.fallbacks
}
