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

// MetricsRecorder records bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records one emit and how many subscribers it was dispatched to.
	RecordEmit(ctx context.Context, key string, subscribers int)

	// RecordDelivery records a handler invocation with its duration and error status.
	RecordDelivery(ctx context.Context, key, loopName string, duration time.Duration, err error)

	// RecordOrphaned records a delivery dropped because its loop was closed.
	RecordOrphaned(ctx context.Context, key, loopName string)

	// RecordRequest records a completed request.
	RecordRequest(ctx context.Context, key string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emits          metric.Int64Counter
	dispatches     metric.Int64Counter
	deliveryLat    metric.Float64Histogram
	deliveryErrors metric.Int64Counter
	orphaned       metric.Int64Counter
	requests       metric.Int64Counter
	requestLat     metric.Float64Histogram
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

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("loopbus")

	emits, err := meter.Int64Counter("loopbus.emit.count",
		metric.WithDescription("Number of emitted events"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("loopbus.dispatch.count",
		metric.WithDescription("Number of deliveries handed to loops"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLat, err := meter.Float64Histogram("loopbus.delivery.latency_ms",
		metric.WithDescription("Handler execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deliveryErrors, err := meter.Int64Counter("loopbus.delivery.errors",
		metric.WithDescription("Number of failed handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	orphaned, err := meter.Int64Counter("loopbus.delivery.orphaned",
		metric.WithDescription("Number of deliveries dropped because the target loop was closed"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter("loopbus.request.count",
		metric.WithDescription("Number of requests"),
	)
	if err != nil {
		return nil, err
	}

	requestLat, err := meter.Float64Histogram("loopbus.request.latency_ms",
		metric.WithDescription("Request round trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emits:          emits,
		dispatches:     dispatches,
		deliveryLat:    deliveryLat,
		deliveryErrors: deliveryErrors,
		orphaned:       orphaned,
		requests:       requests,
		requestLat:     requestLat,
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

// RecordEmit records an emit.
func (m *otelMetrics) RecordEmit(ctx context.Context, key string, subscribers int) {
	attrs := metric.WithAttributes(attribute.String("event_key", key))
	m.emits.Add(ctx, 1, attrs)
	if subscribers > 0 {
		m.dispatches.Add(ctx, int64(subscribers), attrs)
	}
}

// RecordDelivery records a handler invocation.
func (m *otelMetrics) RecordDelivery(ctx context.Context, key, loopName string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event_key", key),
		attribute.String("loop", loopName),
	)
	m.deliveryLat.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.deliveryErrors.Add(ctx, 1, attrs)
	}
}

// RecordOrphaned records a dropped delivery.
func (m *otelMetrics) RecordOrphaned(ctx context.Context, key, loopName string) {
	m.orphaned.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_key", key),
		attribute.String("loop", loopName),
	))
}

// RecordRequest records a request.
func (m *otelMetrics) RecordRequest(ctx context.Context, key string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event_key", key),
		attribute.Bool("success", err == nil),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestLat.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}
