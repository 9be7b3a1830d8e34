// Package observability provides structured logging, metrics and tracing
// for flow execution.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger.
// Returns a new logger with session_id and node_id fields.
func EnrichLogger(logger *slog.Logger, sessionID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
	)
}

// LogSessionStart logs the start of a chat session.
func LogSessionStart(logger *slog.Logger, sessionID string) {
	if logger == nil {
		return
	}
	logger.Info("session starting",
		slog.String("session_id", sessionID),
	)
}

// LogSessionIdle logs a session reaching the end of its flow.
func LogSessionIdle(logger *slog.Logger, sessionID, lastNodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("session idle",
		slog.String("session_id", sessionID),
		slog.String("node_id", lastNodeID),
	)
}

// LogNodeExecute logs a node execution.
func LogNodeExecute(logger *slog.Logger, sessionID, nodeID string, kind string, duration time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("node executed",
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.String("kind", kind),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000.0),
	)
}

// LogNodeError logs a node execution failure.
func LogNodeError(logger *slog.Logger, sessionID, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node execution failed",
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogDeliveryError logs a failed outbound send. Delivery failures never
// abort the flow.
func LogDeliveryError(logger *slog.Logger, sessionID, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("delivery failed",
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogMaxSteps logs a session stopped by the runaway guard.
func LogMaxSteps(logger *slog.Logger, sessionID, nodeID string, steps int) {
	if logger == nil {
		return
	}
	logger.Error("max steps exceeded, stopping session turn",
		slog.String("session_id", sessionID),
		slog.String("node_id", nodeID),
		slog.Int("steps", steps),
	)
}
