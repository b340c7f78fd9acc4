package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.StaleResponses.WithLabelValues("heatmap").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.StaleResponses.WithLabelValues("heatmap")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.StaleResponses.WithLabelValues("heatmap")))
}

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}
}
