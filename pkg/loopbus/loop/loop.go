// Package loop provides context-bound task queues.
//
// A Loop is an execution context with goroutine affinity: tasks may be
// submitted from any goroutine, but they only ever run on the goroutine that
// drives the loop (Run or RunPending). Handlers that touch state which must
// not be shared across goroutines, such as a script interpreter, bind to a
// Loop and are never re-entered from a foreign goroutine.
//
// Submit never blocks. The queue is unbounded and tasks run strictly in
// submission order.
//
//	l := loop.New("ui")
//	go l.Run(ctx)
//	defer l.Close()
//
//	// From any goroutine:
//	_ = l.Submit(loop.TaskFunc(func() error {
//	    render()
//	    return nil
//	}))
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned when submitting to or running a closed loop.
	ErrClosed = errors.New("loop closed")

	// ErrAlreadyRunning is returned when Run is called on a loop that is
	// already being driven by another goroutine.
	ErrAlreadyRunning = errors.New("loop already running")
)

// Task is one unit of work queued on a Loop.
type Task interface {
	Run() error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func() error

// Run implements Task.
func (f TaskFunc) Run() error { return f() }

// Discarder is implemented by tasks that want to know when they are dropped
// without running, either because the loop was closed before they were
// drained or because Submit was refused.
type Discarder interface {
	Discard(err error)
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Loop  string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("loop %s: task panicked: %v", e.Loop, e.Value)
}

// Option configures a Loop.
type Option func(*Loop)

// WithErrorHandler sets the function that receives task errors, including
// recovered panics. It runs on the loop goroutine.
// Default: log at error level.
func WithErrorHandler(fn func(err error)) Option {
	return func(l *Loop) {
		l.onError = fn
	}
}

// WithLogger sets the logger used by the default error handler.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop is a FIFO task queue drained by a single goroutine.
type Loop struct {
	name    string
	logger  *slog.Logger
	onError func(error)

	mu       sync.Mutex
	queue    []Task
	closed   bool
	draining bool

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	stopOnce  sync.Once
	running   atomic.Bool
}

// New creates a loop. The loop does nothing until Run or RunPending is
// called.
func New(name string, opts ...Option) *Loop {
	l := &Loop{
		name:   name,
		logger: slog.Default(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.onError == nil {
		l.onError = l.logError
	}
	return l
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Submit queues t to run on the loop goroutine. It is safe to call from any
// goroutine, including the loop itself, and never blocks. After Close it
// returns ErrClosed and t is not queued.
func (l *Loop) Submit(t Task) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drives the loop on the calling goroutine until ctx is cancelled or
// Close is called. Tasks still queued at that point are discarded.
// Run returns nil after Close and ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

// RunPending runs every task queued at the time of the call on the calling
// goroutine and returns how many ran. Tasks submitted while it runs are left
// for the next turn. It lets a host drive the loop from its own scheduler.
// It must not be called concurrently with Run.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	if l.closed || len(l.queue) == 0 {
		l.mu.Unlock()
		return 0
	}
	batch := l.queue
	l.queue = nil
	l.draining = true
	l.mu.Unlock()
	defer l.finishBatch()

	for i, t := range batch {
		select {
		case <-l.done:
			discard(batch[i:], ErrClosed)
			return i
		default:
		}
		l.runTask(t)
		batch[i] = nil
	}
	return len(batch)
}

func (l *Loop) finishBatch() {
	l.mu.Lock()
	l.draining = false
	closed := l.closed
	l.mu.Unlock()
	if closed {
		l.markStopped()
	}
}

func (l *Loop) markStopped() {
	l.stopOnce.Do(func() { close(l.stopped) })
}

func (l *Loop) runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.onError(&PanicError{Loop: l.name, Value: r, Stack: debug.Stack()})
		}
	}()
	if err := t.Run(); err != nil {
		l.onError(err)
	}
}

// Close stops the loop and discards queued tasks. It is idempotent and safe
// to call from any goroutine, including from inside a task; in that case the
// current task finishes and the rest of its batch is discarded. Close does
// not wait for a running task; use Stopped for that.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		pending := l.queue
		l.queue = nil
		draining := l.draining
		l.mu.Unlock()

		close(l.done)
		discard(pending, ErrClosed)
		if !draining {
			l.markStopped()
		}
	})
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Stopped is closed once the loop is closed and no task is running on it.
// After Stopped, nothing else executes on the loop goroutine.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Running reports whether a goroutine is inside Run.
func (l *Loop) Running() bool { return l.running.Load() }

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// String returns the loop name.
func (l *Loop) String() string { return l.name }

func (l *Loop) logError(err error) {
	l.logger.Error("loop task failed",
		slog.String("loop", l.name),
		slog.String("error", err.Error()),
	)
}

func discard(tasks []Task, err error) {
	for _, t := range tasks {
		if d, ok := t.(Discarder); ok {
			d.Discard(err)
		}
	}
}
