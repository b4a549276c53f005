package loopbus_test

import (
	"bytes"
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
)

// goid returns the id of the calling goroutine.
func goid() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]
	id, _ := strconv.ParseUint(string(buf), 10, 64)
	return id
}

// runLoop drives a new loop on its own goroutine until the test ends and
// returns the loop with the id of that goroutine.
func runLoop(t *testing.T, name string, opts ...loop.Option) (*loop.Loop, uint64) {
	t.Helper()
	l := loop.New(name, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	ids := make(chan uint64, 1)
	require.NoError(t, l.Submit(loop.TaskFunc(func() error {
		ids <- goid()
		return nil
	})))
	select {
	case id := <-ids:
		return l, id
	case <-time.After(5 * time.Second):
		t.Fatalf("loop %s did not start", name)
		return nil, 0
	}
}

// flush waits until every task queued on l before the call has run.
func flush(t *testing.T, l *loop.Loop) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, l.Submit(loop.TaskFunc(func() error {
		close(done)
		return nil
	})))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop %s did not drain", l.Name())
	}
}

// metricCounts is a point-in-time copy of recordingMetrics.
type metricCounts struct {
	emits      map[string]int
	dispatched int
	deliveries int
	failures   int
	orphaned   int
	requests   int
}

// recordingMetrics counts metric calls.
type recordingMetrics struct {
	mu sync.Mutex
	c  metricCounts
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{c: metricCounts{emits: make(map[string]int)}}
}

func (m *recordingMetrics) RecordEmit(_ context.Context, key string, subscribers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.emits[key]++
	m.c.dispatched += subscribers
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, _, _ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.deliveries++
	if err != nil {
		m.c.failures++
	}
}

func (m *recordingMetrics) RecordOrphaned(context.Context, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.orphaned++
}

func (m *recordingMetrics) RecordRequest(context.Context, string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.requests++
}

func (m *recordingMetrics) snapshot() metricCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.c
	out.emits = make(map[string]int, len(m.c.emits))
	for k, v := range m.c.emits {
		out.emits[k] = v
	}
	return out
}

// findLogEntry returns the last JSON log entry in buf with the given message.
func findLogEntry(t *testing.T, buf *bytes.Buffer, msg string) map[string]any {
	t.Helper()
	var found map[string]any
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == msg {
			found = entry
		}
	}
	require.NotNil(t, found, "no log entry %q in:\n%s", msg, buf.String())
	return found
}
