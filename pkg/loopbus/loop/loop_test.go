package loop

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goid returns the current goroutine id. Test-only.
func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

type discardTask struct {
	ran       atomic.Bool
	discarded chan error
}

func newDiscardTask() *discardTask {
	return &discardTask{discarded: make(chan error, 1)}
}

func (d *discardTask) Run() error {
	d.ran.Store(true)
	return nil
}

func (d *discardTask) Discard(err error) {
	d.discarded <- err
}

func startLoop(t *testing.T, l *Loop) (goroutine <-chan uint64) {
	t.Helper()
	ids := make(chan uint64, 1)
	require.NoError(t, l.Submit(TaskFunc(func() error {
		ids <- goid()
		return nil
	})))
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(l.Close)
	return ids
}

func TestSubmitRunsOnLoopGoroutine(t *testing.T) {
	l := New("worker")
	loopID := <-startLoop(t, l)

	got := make(chan uint64, 1)
	go func() {
		_ = l.Submit(TaskFunc(func() error {
			got <- goid()
			return nil
		}))
	}()

	select {
	case id := <-got:
		assert.Equal(t, loopID, id)
		assert.NotEqual(t, goid(), id)
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestTasksRunInSubmitOrder(t *testing.T) {
	l := New("fifo")
	var order []int
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Submit(TaskFunc(func() error {
			order = append(order, i)
			return nil
		})))
	}

	assert.Equal(t, 100, l.Pending())
	assert.Equal(t, 100, l.RunPending())
	assert.Equal(t, 0, l.Pending())
	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestRunPendingLeavesLateTasksForNextTurn(t *testing.T) {
	l := New("batch")
	ran := 0
	require.NoError(t, l.Submit(TaskFunc(func() error {
		ran++
		return l.Submit(TaskFunc(func() error {
			ran++
			return nil
		}))
	})))

	assert.Equal(t, 1, l.RunPending())
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, l.RunPending())
	assert.Equal(t, 2, ran)
}

func TestConcurrentSubmitNoLoss(t *testing.T) {
	l := New("many")
	startLoop(t, l)

	const producers, perProducer = 8, 250
	var count atomic.Int64
	var all sync.WaitGroup
	all.Add(producers * perProducer)

	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < perProducer; i++ {
				_ = l.Submit(TaskFunc(func() error {
					count.Add(1)
					all.Done()
					return nil
				}))
			}
		}()
	}

	waitOrFail(t, &all, 5*time.Second)
	assert.Equal(t, int64(producers*perProducer), count.Load())
}

func TestErrorsGoToErrorHandler(t *testing.T) {
	errs := make(chan error, 2)
	l := New("errs", WithErrorHandler(func(err error) { errs <- err }))

	boom := errors.New("boom")
	require.NoError(t, l.Submit(TaskFunc(func() error { return boom })))
	require.NoError(t, l.Submit(TaskFunc(func() error { panic("kaput") })))
	l.RunPending()

	assert.ErrorIs(t, <-errs, boom)

	var panicErr *PanicError
	require.ErrorAs(t, <-errs, &panicErr)
	assert.Equal(t, "kaput", panicErr.Value)
	assert.Equal(t, "errs", panicErr.Loop)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Contains(t, panicErr.Error(), "kaput")
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	l := New("resilient", WithErrorHandler(func(error) {}))
	require.NoError(t, l.Submit(TaskFunc(func() error { panic("first") })))
	ok := false
	require.NoError(t, l.Submit(TaskFunc(func() error { ok = true; return nil })))

	assert.Equal(t, 2, l.RunPending())
	assert.True(t, ok)
}

func TestCloseDiscardsQueuedTasks(t *testing.T) {
	l := New("closing")
	task := newDiscardTask()
	require.NoError(t, l.Submit(task))

	l.Close()
	assert.True(t, l.Closed())
	assert.ErrorIs(t, <-task.discarded, ErrClosed)
	assert.False(t, task.ran.Load())
	assert.Equal(t, 0, l.RunPending())

	// Idempotent.
	l.Close()
}

func TestSubmitAfterCloseFails(t *testing.T) {
	l := New("closed")
	l.Close()
	assert.ErrorIs(t, l.Submit(TaskFunc(func() error { return nil })), ErrClosed)
	assert.ErrorIs(t, l.Run(context.Background()), ErrClosed)
}

func TestCloseFromInsideTaskDiscardsRestOfBatch(t *testing.T) {
	l := New("self-close")
	require.NoError(t, l.Submit(TaskFunc(func() error {
		l.Close()
		return nil
	})))
	rest := newDiscardTask()
	require.NoError(t, l.Submit(rest))

	assert.Equal(t, 1, l.RunPending())
	assert.ErrorIs(t, <-rest.discarded, ErrClosed)
	assert.False(t, rest.ran.Load())
}

func TestStoppedWaitsForRunningTask(t *testing.T) {
	l := New("stop")
	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, l.Submit(TaskFunc(func() error {
		close(entered)
		<-release
		return nil
	})))
	go l.RunPending()

	<-entered
	l.Close()
	assert.True(t, l.Closed())
	select {
	case <-l.Stopped():
		t.Fatal("stopped while a task was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-l.Stopped():
	case <-time.After(time.Second):
		t.Fatal("loop never stopped")
	}
}

func TestStoppedImmediatelyWhenIdle(t *testing.T) {
	l := New("idle")
	l.Close()
	select {
	case <-l.Stopped():
	default:
		t.Fatal("idle loop not stopped after Close")
	}
}

func TestStoppedAfterCloseFromInsideTask(t *testing.T) {
	l := New("self-stop")
	require.NoError(t, l.Submit(TaskFunc(func() error {
		l.Close()
		select {
		case <-l.Stopped():
			t.Error("stopped before the closing task returned")
		default:
		}
		return nil
	})))

	assert.Equal(t, 1, l.RunPending())
	select {
	case <-l.Stopped():
	default:
		t.Fatal("loop not stopped after batch returned")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	l := New("ctx")
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- l.Run(ctx) }()

	require.Eventually(t, l.Running, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, l.Closed())
	assert.False(t, l.Running())
}

func TestRunReturnsNilOnClose(t *testing.T) {
	l := New("close")
	result := make(chan error, 1)
	go func() { result <- l.Run(context.Background()) }()

	require.Eventually(t, l.Running, time.Second, time.Millisecond)
	l.Close()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	<-l.Done()
}

func TestRunTwiceFails(t *testing.T) {
	l := New("twice")
	go func() { _ = l.Run(context.Background()) }()
	t.Cleanup(l.Close)

	require.Eventually(t, l.Running, time.Second, time.Millisecond)
	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
}

func TestNameAndString(t *testing.T) {
	l := New("named")
	assert.Equal(t, "named", l.Name())
	assert.Equal(t, "named", l.String())
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting")
	}
}
