package loopbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/loopbus/pkg/loopbus/deadletter"
	"github.com/randalmurphal/loopbus/pkg/loopbus/event"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/observability"
	"github.com/randalmurphal/loopbus/pkg/loopbus/registry"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// Bus routes emitted argument lists to handlers bound to loops.
// All methods are safe for concurrent use.
type Bus struct {
	events   *event.Registry
	requests *registry.Registry[string, event.RequestHandler]

	defaultLoop *loop.Loop

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	deadLetters    deadletter.Store
	requestTimeout time.Duration

	// hooks is shared by every untraced task.
	hooks *event.TaskHooks

	// owned resources released by Close, in order.
	owned     []io.Closer
	closeOnce sync.Once
	closeErr  error
}

// New creates a bus. defaultLoop receives handlers registered without
// OnLoop and request replies without an explicit reply loop; it may be nil,
// in which case every registration must name its loop.
func New(defaultLoop *loop.Loop, opts ...Option) *Bus {
	b := &Bus{
		events:         event.NewRegistry(),
		requests:       registry.New[string, event.RequestHandler](),
		defaultLoop:    defaultLoop,
		logger:         slog.Default(),
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.hooks = &event.TaskHooks{
		OnDelivered: b.onDelivered,
		OnDiscarded: b.onDiscarded,
	}
	return b
}

// DefaultLoop returns the loop used when a registration names none.
func (b *Bus) DefaultLoop() *loop.Loop { return b.defaultLoop }

// Logger returns the bus logger.
func (b *Bus) Logger() *slog.Logger { return b.logger }

// On registers fn for key. fn runs on the loop given by OnLoop, or on the
// default loop. Registering the same function twice yields two deliveries
// per emit.
func (b *Bus) On(key string, fn event.HandlerFunc, opts ...OnOption) (event.HandlerID, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}
	return b.Attach(key, event.NewNativeHandler(b.resolveLoop(opts), fn))
}

// Attach registers any Handler variant for key. On error nothing is
// registered and no channel is created.
func (b *Bus) Attach(key string, h event.Handler) (event.HandlerID, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	if h == nil {
		return 0, ErrNilHandler
	}
	l := h.Loop()
	if l == nil {
		return 0, ErrNoLoop
	}

	sub := b.events.FindOrCreate(key).Attach(h)
	observability.LogSubscribe(b.logger, key, uint64(sub.ID), l.Name())
	return sub.ID, nil
}

// Off removes one registration. Deliveries already handed to a loop still
// run. The channel itself is kept.
func (b *Bus) Off(key string, id event.HandlerID) bool {
	ch, ok := b.events.Find(key)
	if !ok || !ch.Detach(id) {
		return false
	}
	observability.LogUnsubscribe(b.logger, key, uint64(id))
	return true
}

// Emit publishes args to the current subscribers of key and returns without
// waiting for any handler. The argument slice is copied; callers may reuse it.
func (b *Bus) Emit(ctx context.Context, key string, args ...value.Value) {
	b.EmitArgs(ctx, key, value.NewArgs(args...))
}

// EmitValue publishes v. With single set, v is the only argument; otherwise
// the elements of the array v are the arguments. A non-array v with single
// unset is delivered as one argument.
func (b *Bus) EmitValue(ctx context.Context, key string, v value.Value, single bool) {
	if single {
		b.EmitArgs(ctx, key, value.Single(v))
		return
	}
	b.EmitArgs(ctx, key, value.FromArray(v))
}

// EmitAny converts Go values with value.FromGo and publishes them. Nothing is
// published if a conversion fails.
func (b *Bus) EmitAny(ctx context.Context, key string, args ...any) error {
	a, err := value.ArgsFromGo(args...)
	if err != nil {
		return err
	}
	b.EmitArgs(ctx, key, a)
	return nil
}

// EmitArgs publishes a prebuilt argument list. Args are immutable, so one list
// is shared by every delivery of this emit.
//
// Subscribers are taken from a snapshot of the channel: a registration racing
// with the emit is either fully included or fully excluded. Keys nobody ever
// registered are a no-op and create nothing. A subscriber whose loop is closed
// is reported as orphaned before EmitArgs returns, including the dead-letter
// write when a store is configured.
func (b *Bus) EmitArgs(ctx context.Context, key string, args value.Args) {
	ch, ok := b.events.Find(key)
	if !ok {
		observability.LogEmitNoChannel(b.logger, key)
		b.metrics.RecordEmit(ctx, key, 0)
		return
	}
	subs := ch.Snapshot()

	hooks := b.hooks
	var span trace.Span
	if b.tracingEnabled {
		ctx, span = b.spans.StartEmitSpan(ctx, key, args.Len())
		hooks = b.tracedHooks(ctx)
	}

	for _, sub := range subs {
		// A refused submission was already reported through OnDiscarded.
		_ = event.NewTask(sub, args, hooks).Dispatch()
	}

	b.metrics.RecordEmit(ctx, key, len(subs))
	observability.LogEmit(b.logger, key, args.Len(), len(subs))
	if span != nil {
		observability.AddSpanEvent(ctx, "dispatched", attribute.Int("subscribers", len(subs)))
		b.spans.EndSpanWithError(span, nil)
	}
}

// Keys returns every key that has a channel, sorted.
func (b *Bus) Keys() []string {
	return b.events.Keys()
}

// Subscribers returns the number of handlers registered for key.
func (b *Bus) Subscribers(key string) int {
	ch, ok := b.events.Find(key)
	if !ok {
		return 0
	}
	return ch.Len()
}

// Channels returns the number of channels. Channels are created by the first
// registration for a key and never removed.
func (b *Bus) Channels() int {
	return b.events.Len()
}

// HandleLoopError reports an error from a loop task. Pass it to
// loop.WithErrorHandler for loops that carry bus handlers.
//
//	ui := loop.New("ui", loop.WithErrorHandler(bus.HandleLoopError))
func (b *Bus) HandleLoopError(err error) {
	var he *event.HandlerError
	if errors.As(err, &he) {
		observability.LogHandlerError(b.logger, he.Key, uint64(he.HandlerID), he.Loop, he.Err)
		return
	}
	b.logger.Error("loop task failed", slog.String("error", err.Error()))
}

// Close releases resources opened by Open: the default loop, then the
// dead-letter store. A Bus built with New owns nothing and Close is a no-op.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		for _, c := range b.owned {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

func (b *Bus) resolveLoop(opts []OnOption) *loop.Loop {
	cfg := onConfig{loop: b.defaultLoop}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.loop
}

func (b *Bus) tracedHooks(emitCtx context.Context) *event.TaskHooks {
	return &event.TaskHooks{
		OnStart: func(t *event.Task) func(error) {
			sub := t.Subscriber()
			_, span := b.spans.StartDeliverySpan(emitCtx, sub.Key, uint64(sub.ID), loopName(sub))
			wait := time.Since(t.SubmittedAt())
			span.SetAttributes(attribute.Float64("queue.delay_ms", float64(wait.Microseconds())/1000))
			return func(err error) {
				b.spans.EndSpanWithError(span, err)
			}
		},
		OnDelivered: b.onDelivered,
		OnDiscarded: b.onDiscarded,
	}
}

// onDelivered runs on the subscriber's loop.
func (b *Bus) onDelivered(t *event.Task, d time.Duration, err error) {
	sub := t.Subscriber()
	b.metrics.RecordDelivery(context.Background(), sub.Key, loopName(sub), d, err)
	if err != nil {
		b.recordDeadLetter(t, deadletter.ReasonHandlerFailed, err)
	}
}

// onDiscarded runs on the goroutine that closed the loop or tried to submit.
func (b *Bus) onDiscarded(t *event.Task, err error) {
	sub := t.Subscriber()
	observability.LogOrphaned(b.logger, sub.Key, uint64(sub.ID), loopName(sub), err)
	b.metrics.RecordOrphaned(context.Background(), sub.Key, loopName(sub))
	b.recordDeadLetter(t, deadletter.ReasonOrphaned, err)
}

func (b *Bus) recordDeadLetter(t *event.Task, reason deadletter.Reason, cause error) {
	if b.deadLetters == nil {
		return
	}
	sub := t.Subscriber()

	// Record the handler's own error, not the delivery wrapper.
	var he *event.HandlerError
	if errors.As(cause, &he) {
		cause = he.Err
	}
	var de *event.DiscardError
	if errors.As(cause, &de) {
		cause = de.Err
	}

	rec, err := deadletter.NewRecord(sub.Key, t.Args(), uint64(sub.ID), loopName(sub), reason, cause)
	if err == nil {
		_, err = b.deadLetters.Save(rec)
	}
	if err != nil {
		logger := observability.EnrichLogger(b.logger, sub.Key, uint64(sub.ID), loopName(sub))
		observability.LogDeadLetterError(logger, string(reason), err)
	}
}

func loopName(sub *event.Subscriber) string {
	if l := sub.Handler.Loop(); l != nil {
		return l.Name()
	}
	return ""
}
