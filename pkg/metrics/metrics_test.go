package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestActiveSourcesGauge(t *testing.T) {
	ActiveSources.Set(0)
	ActiveSources.Inc()
	ActiveSources.Inc()
	assert.Equal(t, 2.0, gaugeValue(t, ActiveSources))
	ActiveSources.Dec()
	assert.Equal(t, 1.0, gaugeValue(t, ActiveSources))
}

func TestTreeNodesVecByLabel(t *testing.T) {
	TreeNodes.WithLabelValues("sap").Set(3)
	g, err := TreeNodes.GetMetricWithLabelValues("sap")
	require.NoError(t, err)
	assert.Equal(t, 3.0, gaugeValue(t, g))
}

func TestProviderRequestsCounter(t *testing.T) {
	ProviderRequests.WithLabelValues("constructed").Inc()
	ProviderRequests.WithLabelValues("constructed").Inc()
	ProviderRequests.WithLabelValues("attached").Inc()

	m := &dto.Metric{}
	c, err := ProviderRequests.GetMetricWithLabelValues("constructed")
	require.NoError(t, err)
	require.NoError(t, c.(prometheus.Counter).Write(m))
	assert.Equal(t, 2.0, m.GetCounter().GetValue())
}
