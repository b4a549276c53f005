package loopbus

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/loopbus/pkg/loopbus/deadletter"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/observability"
)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
// Default: disabled
//
// Example:
//
//	bus := loopbus.New(mainLoop, loopbus.WithMetrics(true))
func WithMetrics(enabled bool) Option {
	return func(b *Bus) {
		if enabled {
			b.metrics = observability.NewMetricsRecorder()
		} else {
			b.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(b *Bus) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for emits, deliveries and requests.
// Default: disabled
func WithTracing(enabled bool) Option {
	return func(b *Bus) {
		b.tracingEnabled = enabled
		if enabled {
			b.spans = observability.NewSpanManager()
		} else {
			b.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager sets a custom span manager and enables tracing.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(b *Bus) {
		if sm != nil {
			b.spans = sm
			b.tracingEnabled = true
		}
	}
}

// WithDeadLetters records failed and orphaned deliveries in store.
// Failed deliveries are saved on the handler's loop. Orphaned ones are saved
// on the goroutine that closed the loop, or inside Emit when the loop refuses
// the task, so a slow store slows those callers down.
// Default: none
func WithDeadLetters(store deadletter.Store) Option {
	return func(b *Bus) {
		b.deadLetters = store
	}
}

// WithRequestTimeout bounds Request calls whose context has no deadline.
// Zero disables the bound.
// Default: 30s
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d >= 0 {
			b.requestTimeout = d
		}
	}
}

// onConfig holds per-registration settings.
type onConfig struct {
	loop *loop.Loop
}

// OnOption configures a single registration.
type OnOption func(*onConfig)

// OnLoop binds the handler to l instead of the bus default loop.
//
// Example:
//
//	id, err := bus.On("ping", handle, loopbus.OnLoop(uiLoop))
func OnLoop(l *loop.Loop) OnOption {
	return func(c *onConfig) {
		if l != nil {
			c.loop = l
		}
	}
}
