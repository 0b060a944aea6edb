package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the acquisition core.
// A nil *Metrics is valid and turns every observation into a no-op,
// which keeps instrumentation optional in tests and one-shot commands.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
}

// NewMetrics creates and registers the instrument set on a private
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketintel_upstream_requests_total",
				Help: "Upstream call attempts by logical endpoint and result",
			},
			[]string{"endpoint", "result"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketintel_upstream_request_duration_seconds",
				Help:    "Upstream call attempt latency by logical endpoint",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"endpoint"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketintel_cache_hits_total",
				Help: "Response cache hits by resource",
			},
			[]string{"resource"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketintel_cache_misses_total",
				Help: "Response cache misses by resource",
			},
			[]string{"resource"},
		),

		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketintel_rate_limited_total",
				Help: "Calls rejected by the outbound rate budget, by endpoint",
			},
			[]string{"endpoint"},
		),
	}

	m.registry.MustRegister(
		m.UpstreamRequests,
		m.RequestDuration,
		m.CacheHits,
		m.CacheMisses,
		m.RateLimited,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one upstream call attempt.
func (m *Metrics) ObserveRequest(endpoint string, success bool, latency time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.UpstreamRequests.WithLabelValues(endpoint, result).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// ObserveCache records a cache lookup outcome for a resource.
func (m *Metrics) ObserveCache(resource string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(resource).Inc()
	} else {
		m.CacheMisses.WithLabelValues(resource).Inc()
	}
}

// ObserveRateLimited records a budget rejection for an endpoint.
func (m *Metrics) ObserveRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(endpoint).Inc()
}

// Registry exposes the underlying registry for test gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
