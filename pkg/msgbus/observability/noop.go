package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordEmission does nothing.
func (NoopMetrics) RecordEmission(_ context.Context, _, _, _ string, _ int, _ time.Duration) {}

// RecordCancellation does nothing.
func (NoopMetrics) RecordCancellation(_ context.Context, _, _, _ string) {}

// RecordRegistration does nothing.
func (NoopMetrics) RecordRegistration(_ context.Context, _, _ string, _ int64) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
var noopSpan = noop.Span{}

// StartEmissionSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartEmissionSpan(ctx context.Context, _, _, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndEmissionSpan does nothing.
func (NoopSpanManager) EndEmissionSpan(_ trace.Span, _ int, _ bool) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
