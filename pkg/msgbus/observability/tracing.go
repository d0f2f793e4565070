package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the msgbus tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("msgbus")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEmissionSpan starts a span covering one emission.
	StartEmissionSpan(ctx context.Context, bus, messageType, kind string, emissionID uint64) (context.Context, trace.Span)

	// EndEmissionSpan completes an emission span with its outcome.
	EndEmissionSpan(span trace.Span, dispatched int, cancelled bool)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartEmissionSpan starts a span for one emission.
func (m *otelSpanManager) StartEmissionSpan(ctx context.Context, bus, messageType, kind string, emissionID uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "msgbus.emit."+kind,
		trace.WithAttributes(
			attribute.String("bus.name", bus),
			attribute.String("message.type", messageType),
			attribute.Int64("emission.id", int64(emissionID)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndEmissionSpan completes an emission span.
func (m *otelSpanManager) EndEmissionSpan(span trace.Span, dispatched int, cancelled bool) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("emission.dispatched", dispatched),
		attribute.Bool("emission.cancelled", cancelled),
	)
	if cancelled {
		span.SetStatus(codes.Unset, "cancelled by interceptor")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
