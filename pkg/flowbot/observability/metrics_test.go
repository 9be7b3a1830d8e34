package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMetrics installs a manual-reader meter provider and returns the
// reader for collection.
func setupTestMetrics(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func counterValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecorder(t *testing.T) {
	reader := setupTestMetrics(t)
	recorder := NewMetricsRecorder()
	ctx := context.Background()

	recorder.RecordSessionStart(ctx)
	recorder.RecordSessionStart(ctx)
	recorder.RecordNodeExecution(ctx, "message", 5*time.Millisecond, nil)
	recorder.RecordNodeExecution(ctx, "delay", 12*time.Millisecond, errors.New("canceled"))
	recorder.RecordLLMCall(ctx, "gpt-4", 800*time.Millisecond, nil)

	rm := collectMetrics(t, reader)

	sessions, ok := findMetric(rm, "flowbot.sessions.started")
	require.True(t, ok)
	assert.Equal(t, int64(2), counterValue(t, sessions))

	executions, ok := findMetric(rm, "flowbot.node.executions")
	require.True(t, ok)
	assert.Equal(t, int64(2), counterValue(t, executions))

	nodeErrors, ok := findMetric(rm, "flowbot.node.errors")
	require.True(t, ok)
	assert.Equal(t, int64(1), counterValue(t, nodeErrors))

	latency, ok := findMetric(rm, "flowbot.node.latency_ms")
	require.True(t, ok)
	hist, isHist := latency.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	llmCalls, ok := findMetric(rm, "flowbot.llm.calls")
	require.True(t, ok)
	assert.Equal(t, int64(1), counterValue(t, llmCalls))
}

func TestNoopMetricsIsSafe(t *testing.T) {
	ctx := context.Background()
	var m MetricsRecorder = NoopMetrics{}
	m.RecordSessionStart(ctx)
	m.RecordNodeExecution(ctx, "message", time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "message", time.Millisecond, errors.New("x"))
	m.RecordLLMCall(ctx, "gpt-4", time.Second, nil)
}
