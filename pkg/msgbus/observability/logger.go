// Package observability provides logging, metrics, and tracing for msgbus.
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

// EnrichLogger adds bus context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "gameplay", 3)
//	enriched.Debug("bus created") // includes bus and bus_index
func EnrichLogger(logger *slog.Logger, busName string, busIndex int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("bus", busName),
		slog.Int("bus_index", busIndex),
	)
}

// LogEmission logs a completed emission.
func LogEmission(logger *slog.Logger, emissionID uint64, messageType, kind string, dispatched int) {
	if logger == nil {
		return
	}
	logger.Debug("message emitted",
		slog.Uint64("emission_id", emissionID),
		slog.String("message_type", messageType),
		slog.String("kind", kind),
		slog.Int("dispatched", dispatched),
	)
}

// LogCancelled logs an emission vetoed by an interceptor.
func LogCancelled(logger *slog.Logger, emissionID uint64, messageType, kind string) {
	if logger == nil {
		return
	}
	logger.Debug("message cancelled by interceptor",
		slog.Uint64("emission_id", emissionID),
		slog.String("message_type", messageType),
		slog.String("kind", kind),
	)
}

// LogDispatch logs a single callback invocation.
func LogDispatch(logger *slog.Logger, emissionID uint64, messageType, mode string, priority, count int) {
	if logger == nil {
		return
	}
	logger.Debug("callback dispatched",
		slog.Uint64("emission_id", emissionID),
		slog.String("message_type", messageType),
		slog.String("mode", mode),
		slog.Int("priority", priority),
		slog.Int("count", count),
	)
}

// LogRegistration logs a handler or interceptor registration.
func LogRegistration(logger *slog.Logger, messageType, mode string, priority int) {
	if logger == nil {
		return
	}
	logger.Debug("handler registered",
		slog.String("message_type", messageType),
		slog.String("mode", mode),
		slog.Int("priority", priority),
	)
}

// LogDeregistration logs a handler or interceptor removal.
func LogDeregistration(logger *slog.Logger, messageType, mode string, priority int) {
	if logger == nil {
		return
	}
	logger.Debug("handler deregistered",
		slog.String("message_type", messageType),
		slog.String("mode", mode),
		slog.Int("priority", priority),
	)
}

// LogDefaultBusChange logs a swap of the process-wide default bus.
func LogDefaultBusChange(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Debug("default bus changed",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogHistoryError logs a history sink failure (non-fatal).
func LogHistoryError(logger *slog.Logger, emissionID uint64, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("history capture failed",
		slog.Uint64("emission_id", emissionID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
