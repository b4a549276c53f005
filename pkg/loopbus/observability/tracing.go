package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("loopbus")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEmitSpan starts a span for one emit.
	StartEmitSpan(ctx context.Context, key string, args int) (context.Context, trace.Span)

	// StartDeliverySpan starts a span for one handler invocation. The span is
	// linked to the emit span carried by emitCtx; the delivery runs on another
	// goroutine, possibly after the emit returned.
	StartDeliverySpan(emitCtx context.Context, key string, handlerID uint64, loopName string) (context.Context, trace.Span)

	// StartRequestSpan starts a span for a request round trip.
	StartRequestSpan(ctx context.Context, key, requestID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
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

// StartEmitSpan starts a span for one emit.
func (m *otelSpanManager) StartEmitSpan(ctx context.Context, key string, args int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "loopbus.emit",
		trace.WithAttributes(
			attribute.String("event.key", key),
			attribute.Int("event.args", args),
		),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
}

// StartDeliverySpan starts a consumer span linked to the emit.
func (m *otelSpanManager) StartDeliverySpan(emitCtx context.Context, key string, handlerID uint64, loopName string) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{
		trace.WithAttributes(
			attribute.String("event.key", key),
			attribute.Int64("handler.id", int64(handlerID)),
			attribute.String("loop.name", loopName),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	}
	if sc := trace.SpanContextFromContext(emitCtx); sc.IsValid() {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: sc}))
	}
	return tracer.Start(context.Background(), "loopbus.deliver", opts...)
}

// StartRequestSpan starts a span for a request.
func (m *otelSpanManager) StartRequestSpan(ctx context.Context, key, requestID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "loopbus.request",
		trace.WithAttributes(
			attribute.String("event.key", key),
			attribute.String("request.id", requestID),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
