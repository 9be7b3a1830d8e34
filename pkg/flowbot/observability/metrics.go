package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records flow execution metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, kind string, duration time.Duration, err error)

	// RecordSessionStart records a new chat session.
	RecordSessionStart(ctx context.Context)

	// RecordLLMCall records an llm-prompt completion call.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	sessions       metric.Int64Counter
	llmCalls       metric.Int64Counter
	llmLatency     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("flowbot")

	nodeExecutions, err := meter.Int64Counter("flowbot.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("flowbot.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("flowbot.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := meter.Int64Counter("flowbot.sessions.started",
		metric.WithDescription("Number of chat sessions started"),
	)
	if err != nil {
		return nil, err
	}

	llmCalls, err := meter.Int64Counter("flowbot.llm.calls",
		metric.WithDescription("Number of LLM completion calls"),
	)
	if err != nil {
		return nil, err
	}

	llmLatency, err := meter.Float64Histogram("flowbot.llm.latency_ms",
		metric.WithDescription("LLM completion latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		sessions:       sessions,
		llmCalls:       llmCalls,
		llmLatency:     llmLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, kind string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
	}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordSessionStart records a new session.
func (m *otelMetrics) RecordSessionStart(ctx context.Context) {
	m.sessions.Add(ctx, 1)
}

// RecordLLMCall records a completion call.
func (m *otelMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
		attribute.Bool("success", err == nil),
	}
	m.llmCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.llmLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}
