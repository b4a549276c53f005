// Package observability provides logging, metrics and tracing for loopbus.
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

// EnrichLogger adds delivery context to a logger.
// Returns a new logger with event_key, handler_id, and loop fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "ping", 3, "ui")
//	enriched.Info("delivering") // includes event_key, handler_id, loop
func EnrichLogger(logger *slog.Logger, key string, handlerID uint64, loopName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_key", key),
		slog.Uint64("handler_id", handlerID),
		slog.String("loop", loopName),
	)
}

// LogSubscribe logs a handler attachment.
func LogSubscribe(logger *slog.Logger, key string, handlerID uint64, loopName string) {
	if logger == nil {
		return
	}
	logger.Debug("handler attached",
		slog.String("event_key", key),
		slog.Uint64("handler_id", handlerID),
		slog.String("loop", loopName),
	)
}

// LogUnsubscribe logs a handler detachment.
func LogUnsubscribe(logger *slog.Logger, key string, handlerID uint64) {
	if logger == nil {
		return
	}
	logger.Debug("handler detached",
		slog.String("event_key", key),
		slog.Uint64("handler_id", handlerID),
	)
}

// LogEmit logs an emit that reached at least one subscriber.
func LogEmit(logger *slog.Logger, key string, args, subscribers int) {
	if logger == nil {
		return
	}
	logger.Debug("event emitted",
		slog.String("event_key", key),
		slog.Int("args", args),
		slog.Int("subscribers", subscribers),
	)
}

// LogEmitNoChannel logs an emit to a key nobody subscribed to.
func LogEmitNoChannel(logger *slog.Logger, key string) {
	if logger == nil {
		return
	}
	logger.Debug("event has no subscribers",
		slog.String("event_key", key),
	)
}

// LogHandlerError logs a failed delivery.
func LogHandlerError(logger *slog.Logger, key string, handlerID uint64, loopName string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event_key", key),
		slog.Uint64("handler_id", handlerID),
		slog.String("loop", loopName),
		slog.String("error", err.Error()),
	)
}

// LogOrphaned logs a delivery dropped because its loop was gone.
func LogOrphaned(logger *slog.Logger, key string, handlerID uint64, loopName string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("delivery orphaned",
		slog.String("event_key", key),
		slog.Uint64("handler_id", handlerID),
		slog.String("loop", loopName),
		slog.String("error", err.Error()),
	)
}

// LogRequest logs the start of a request.
func LogRequest(logger *slog.Logger, key, requestID string) {
	if logger == nil {
		return
	}
	logger.Debug("request started",
		slog.String("event_key", key),
		slog.String("request_id", requestID),
	)
}

// LogRequestComplete logs a request reply.
func LogRequestComplete(logger *slog.Logger, key, requestID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("request completed",
		slog.String("event_key", key),
		slog.String("request_id", requestID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRequestError logs a request that failed or was abandoned.
func LogRequestError(logger *slog.Logger, key, requestID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("request failed",
		slog.String("event_key", key),
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
}

// LogDeadLetterError logs a dead-letter write failure (non-fatal). logger is
// expected to come from EnrichLogger.
func LogDeadLetterError(logger *slog.Logger, reason string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dead letter write failed",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
