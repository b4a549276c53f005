package event

import (
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// TaskState is the lifecycle state of a Task.
type TaskState int32

// Task states.
const (
	TaskCreated TaskState = iota
	TaskWakeRequested
	TaskDelivered
	TaskDiscarded
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskWakeRequested:
		return "wake_requested"
	case TaskDelivered:
		return "delivered"
	case TaskDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// TaskHooks observe the end of a delivery. Hooks may be nil.
type TaskHooks struct {
	// OnStart runs on the subscriber's loop right before the handler. The
	// returned function, if any, runs when the handler returned.
	OnStart func(t *Task) (end func(err error))

	// OnDelivered runs on the subscriber's loop after the handler returned.
	// err is a *HandlerError or nil.
	OnDelivered func(t *Task, duration time.Duration, err error)

	// OnDiscarded runs when the task was dropped without running. err is a
	// *DiscardError. It runs on whichever goroutine closed the loop or
	// attempted the submission.
	OnDiscarded func(t *Task, err error)
}

// Task carries one argument list to one subscriber.
type Task struct {
	sub   *Subscriber
	args  value.Args
	hooks *TaskHooks
	state atomic.Int32

	submittedAt time.Time
}

// NewTask creates a delivery of args to sub. hooks may be nil.
func NewTask(sub *Subscriber, args value.Args, hooks *TaskHooks) *Task {
	return &Task{sub: sub, args: args, hooks: hooks}
}

// Subscriber returns the target subscriber.
func (t *Task) Subscriber() *Subscriber { return t.sub }

// Args returns the delivered arguments.
func (t *Task) Args() value.Args { return t.args }

// State returns the current lifecycle state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Dispatch requests a wake on the subscriber's loop and returns immediately.
// If the loop refuses the task it is discarded and the error is returned.
func (t *Task) Dispatch() error {
	l := t.sub.Handler.Loop()
	if l == nil {
		t.Discard(ErrNoLoop)
		return ErrNoLoop
	}

	t.submittedAt = time.Now()
	t.state.Store(int32(TaskWakeRequested))
	if err := l.Submit(t); err != nil {
		t.Discard(err)
		return err
	}
	return nil
}

// Run implements loop.Task. It invokes the handler on the calling goroutine,
// which is the loop goroutine.
func (t *Task) Run() (err error) {
	if !t.state.CompareAndSwap(int32(TaskWakeRequested), int32(TaskDelivered)) {
		return nil
	}

	var end func(error)
	if t.hooks != nil && t.hooks.OnStart != nil {
		end = t.hooks.OnStart(t)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &loop.PanicError{Loop: t.loopName(), Value: r, Stack: debug.Stack()}
		}
		if err != nil {
			err = &HandlerError{
				Key:       t.sub.Key,
				HandlerID: t.sub.ID,
				Loop:      t.loopName(),
				Err:       err,
			}
		}
		if end != nil {
			end(err)
		}
		if t.hooks != nil && t.hooks.OnDelivered != nil {
			t.hooks.OnDelivered(t, time.Since(start), err)
		}
	}()

	return t.sub.Handler.Handle(t.args)
}

// Discard implements loop.Discarder.
func (t *Task) Discard(err error) {
	for {
		cur := t.state.Load()
		if cur == int32(TaskDelivered) || cur == int32(TaskDiscarded) {
			return
		}
		if t.state.CompareAndSwap(cur, int32(TaskDiscarded)) {
			break
		}
	}

	if t.hooks != nil && t.hooks.OnDiscarded != nil {
		t.hooks.OnDiscarded(t, &DiscardError{
			Key:       t.sub.Key,
			HandlerID: t.sub.ID,
			Loop:      t.loopName(),
			Err:       err,
		})
	}
}

// SubmittedAt returns when Dispatch handed the task to its loop.
func (t *Task) SubmittedAt() time.Time { return t.submittedAt }

func (t *Task) loopName() string {
	if l := t.sub.Handler.Loop(); l != nil {
		return l.Name()
	}
	return ""
}

var (
	_ loop.Task      = (*Task)(nil)
	_ loop.Discarder = (*Task)(nil)
)
