package loopbus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/loopbus/pkg/loopbus/event"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/observability"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// ReplyFunc receives the reply of an asynchronous request. err is a
// *RequestError when the handler failed.
type ReplyFunc func(reply value.Value, err error)

// OnRequest registers the single request handler for key.
func (b *Bus) OnRequest(key string, fn event.RequestFunc, opts ...OnOption) error {
	if fn == nil {
		return ErrNilHandler
	}
	return b.AttachRequest(key, event.NewNativeRequestHandler(b.resolveLoop(opts), fn))
}

// AttachRequest registers any RequestHandler variant for key. A key has at
// most one request handler.
func (b *Bus) AttachRequest(key string, h event.RequestHandler) error {
	if key == "" {
		return ErrEmptyKey
	}
	if h == nil {
		return ErrNilHandler
	}
	if h.Loop() == nil {
		return ErrNoLoop
	}
	if !b.requests.TryRegister(key, h) {
		return fmt.Errorf("%w: %q", ErrRequestHandlerExists, key)
	}
	return nil
}

// OffRequest removes the request handler for key.
func (b *Bus) OffRequest(key string) bool {
	return b.requests.Delete(key)
}

// DetachRequest removes the request handler for key only if it is still h.
func (b *Bus) DetachRequest(key string, h event.RequestHandler) bool {
	return b.requests.DeleteFunc(key, func(cur event.RequestHandler) bool {
		return cur == h
	})
}

// RequestKeys returns every key with a request handler, sorted.
func (b *Bus) RequestKeys() []string {
	keys := b.requests.Keys()
	sort.Strings(keys)
	return keys
}

// Request runs the handler for key on its loop and waits for the reply.
// Without a deadline on ctx the bus request timeout applies.
//
// Request must not be called from the handler's own loop goroutine: that loop
// cannot run the handler while it is blocked here. Use RequestAsync there.
func (b *Bus) Request(ctx context.Context, key string, args ...value.Value) (value.Value, error) {
	if _, ok := ctx.Deadline(); !ok && b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	type result struct {
		v   value.Value
		err error
	}
	done := make(chan result, 1)

	id, err := b.submitRequest(ctx, key, value.NewArgs(args...), func(v value.Value, err error) {
		done <- result{v, err}
	})
	if err != nil {
		return value.Null(), err
	}

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		observability.LogRequestError(b.logger, key, id, ctx.Err())
		return value.Null(), fmt.Errorf("request %s %q: %w", id, key, ctx.Err())
	}
}

// RequestAsync runs the handler for key on its loop and delivers the reply to
// reply on replyLoop, or on the default loop when replyLoop is nil. It never
// blocks.
func (b *Bus) RequestAsync(key string, args value.Args, reply ReplyFunc, replyLoop *loop.Loop) error {
	if reply == nil {
		return ErrNilHandler
	}
	if replyLoop == nil {
		replyLoop = b.defaultLoop
	}
	if replyLoop == nil {
		return ErrNoLoop
	}

	_, err := b.submitRequest(context.Background(), key, args, func(v value.Value, err error) {
		submitErr := replyLoop.Submit(loop.TaskFunc(func() error {
			reply(v, err)
			return nil
		}))
		if submitErr != nil {
			observability.LogRequestError(b.logger, key, "", submitErr)
		}
	})
	return err
}

// submitRequest queues the handler call and returns the request id. finish is
// called exactly once, on the handler's loop or on whichever goroutine
// discarded the request.
func (b *Bus) submitRequest(ctx context.Context, key string, args value.Args, finish ReplyFunc) (string, error) {
	h, ok := b.requests.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoRequestHandler, key)
	}

	id := uuid.NewString()
	observability.LogRequest(b.logger, key, id)

	spanCtx, span := b.spans.StartRequestSpan(ctx, key, id)
	elapsedMs := observability.TimedOperation()

	task := &requestTask{
		id:      id,
		key:     key,
		handler: h,
		args:    args,
		finish: func(v value.Value, err error) {
			ms := elapsedMs()
			b.metrics.RecordRequest(spanCtx, key, time.Duration(ms*float64(time.Millisecond)), err)
			b.spans.EndSpanWithError(span, err)
			if err != nil {
				observability.LogRequestError(b.logger, key, id, err)
			} else {
				observability.LogRequestComplete(b.logger, key, id, ms)
			}
			finish(v, err)
		},
	}

	// A closed loop refuses the task; the requester still gets a reply.
	if err := h.Loop().Submit(task); err != nil {
		task.Discard(err)
	}
	return id, nil
}

// requestTask runs one request on the handler's loop.
type requestTask struct {
	id      string
	key     string
	handler event.RequestHandler
	args    value.Args
	finish  ReplyFunc
	once    sync.Once
}

// Run implements loop.Task. Handler failures go to the requester, not to the
// loop's error handler.
func (t *requestTask) Run() error {
	var (
		v   value.Value
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &loop.PanicError{Loop: t.handler.Loop().Name(), Value: r, Stack: debug.Stack()}
			}
		}()
		v, err = t.handler.HandleRequest(t.args)
	}()

	if err != nil {
		t.reply(value.Null(), t.wrap(err))
		return nil
	}
	t.reply(v, nil)
	return nil
}

// Discard implements loop.Discarder.
func (t *requestTask) Discard(err error) {
	t.reply(value.Null(), t.wrap(err))
}

func (t *requestTask) reply(v value.Value, err error) {
	t.once.Do(func() {
		t.finish(v, err)
	})
}

func (t *requestTask) wrap(err error) error {
	return &RequestError{
		RequestID: t.id,
		Key:       t.key,
		Loop:      t.handler.Loop().Name(),
		Err:       err,
	}
}

var (
	_ loop.Task      = (*requestTask)(nil)
	_ loop.Discarder = (*requestTask)(nil)
)
