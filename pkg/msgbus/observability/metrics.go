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

// MetricsRecorder records msgbus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmission records one completed emission with its dispatch count.
	RecordEmission(ctx context.Context, bus, messageType, kind string, dispatched int, duration time.Duration)

	// RecordCancellation records an emission vetoed by an interceptor.
	RecordCancellation(ctx context.Context, bus, messageType, kind string)

	// RecordRegistration records a registration (+1) or deregistration (-1).
	RecordRegistration(ctx context.Context, bus, mode string, delta int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emissions     metric.Int64Counter
	dispatches    metric.Int64Counter
	emitLatency   metric.Float64Histogram
	cancellations metric.Int64Counter
	registrations metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("msgbus")

	emissions, err := meter.Int64Counter("msgbus.emissions",
		metric.WithDescription("Number of emissions"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("msgbus.dispatches",
		metric.WithDescription("Number of callback invocations"),
	)
	if err != nil {
		return nil, err
	}

	emitLatency, err := meter.Float64Histogram("msgbus.emission.latency_us",
		metric.WithDescription("Emission latency in microseconds"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return nil, err
	}

	cancellations, err := meter.Int64Counter("msgbus.cancellations",
		metric.WithDescription("Number of emissions vetoed by an interceptor"),
	)
	if err != nil {
		return nil, err
	}

	registrations, err := meter.Int64UpDownCounter("msgbus.registrations",
		metric.WithDescription("Number of live registrations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emissions:     emissions,
		dispatches:    dispatches,
		emitLatency:   emitLatency,
		cancellations: cancellations,
		registrations: registrations,
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

// RecordEmission records an emission.
func (m *otelMetrics) RecordEmission(ctx context.Context, bus, messageType, kind string, dispatched int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("bus", bus),
		attribute.String("message_type", messageType),
		attribute.String("kind", kind),
	)
	m.emissions.Add(ctx, 1, attrs)
	m.dispatches.Add(ctx, int64(dispatched), attrs)
	m.emitLatency.Record(ctx, float64(duration.Microseconds()), attrs)
}

// RecordCancellation records a vetoed emission.
func (m *otelMetrics) RecordCancellation(ctx context.Context, bus, messageType, kind string) {
	m.cancellations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bus", bus),
		attribute.String("message_type", messageType),
		attribute.String("kind", kind),
	))
}

// RecordRegistration records a registration change.
func (m *otelMetrics) RecordRegistration(ctx context.Context, bus, mode string, delta int64) {
	m.registrations.Add(ctx, delta, metric.WithAttributes(
		attribute.String("bus", bus),
		attribute.String("mode", mode),
	))
}
