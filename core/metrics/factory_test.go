package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartrail/core/factory"
	metrics "github.com/kilianp07/smartrail/core/metrics"
	_ "github.com/kilianp07/smartrail/infra/metrics"
)

func TestNewMetricsSinkCounts(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s, "a single sink is not wrapped")

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "got %T", s)
	assert.Len(t, m.Sinks, 3)
}

func TestInfluxSinkFallsBackWhenUnreachable(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": "http://127.0.0.1:1", "org": "rail", "bucket": "predictions"},
	}})
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)
}

func TestRegisterMetricsSinkRejectsDuplicates(t *testing.T) {
	err := metrics.RegisterMetricsSink("nop", func(map[string]any) (metrics.MetricsSink, error) {
		return metrics.NopSink{}, nil
	})
	assert.Error(t, err)
	assert.Error(t, metrics.RegisterMetricsSink("unused", nil))
}
