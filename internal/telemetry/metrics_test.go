package telemetry

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, pair := range metric.GetLabel() {
		if want, ok := labels[pair.GetName()]; ok && pair.GetValue() == want {
			found++
		}
	}
	return found == len(labels)
}

func TestObserveRequest(t *testing.T) {
	m := NewMetrics()

	m.ObserveRequest("markets", true, 25*time.Millisecond)
	m.ObserveRequest("markets", false, 50*time.Millisecond)
	m.ObserveRequest("orderbook", true, 10*time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, m, "marketintel_upstream_requests_total",
		map[string]string{"endpoint": "markets", "result": "success"}))
	assert.Equal(t, 1.0, counterValue(t, m, "marketintel_upstream_requests_total",
		map[string]string{"endpoint": "markets", "result": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, m, "marketintel_upstream_requests_total",
		map[string]string{"endpoint": "orderbook", "result": "success"}))
}

func TestObserveCacheAndRateLimited(t *testing.T) {
	m := NewMetrics()

	m.ObserveCache("markets", true)
	m.ObserveCache("markets", true)
	m.ObserveCache("markets", false)
	m.ObserveRateLimited("trades")

	assert.Equal(t, 2.0, counterValue(t, m, "marketintel_cache_hits_total", map[string]string{"resource": "markets"}))
	assert.Equal(t, 1.0, counterValue(t, m, "marketintel_cache_misses_total", map[string]string{"resource": "markets"}))
	assert.Equal(t, 1.0, counterValue(t, m, "marketintel_rate_limited_total", map[string]string{"endpoint": "trades"}))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	// Must not panic.
	m.ObserveRequest("markets", true, time.Millisecond)
	m.ObserveCache("markets", false)
	m.ObserveRateLimited("markets")
}
