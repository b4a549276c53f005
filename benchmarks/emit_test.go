package benchmarks

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/randalmurphal/loopbus/pkg/loopbus"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// startLoop runs a loop until the benchmark ends.
func startLoop(b *testing.B, name string) *loop.Loop {
	b.Helper()
	l := loop.New(name)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	b.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l
}

// drain waits for everything queued on l so far.
func drain(l *loop.Loop) {
	done := make(chan struct{})
	if err := l.Submit(loop.TaskFunc(func() error {
		close(done)
		return nil
	})); err != nil {
		return
	}
	<-done
}

func sampleArgs() value.Args {
	return value.NewArgs(
		value.String("order-42"),
		value.Int32(3),
		value.Object(
			value.Member{Key: "sku", Value: value.String("A-100")},
			value.Member{Key: "tags", Value: value.Array(value.String("red"), value.String("xl"))},
		),
	)
}

// BenchmarkEmit_NoSubscribers measures emitting to an unknown key.
func BenchmarkEmit_NoSubscribers(b *testing.B) {
	bus := loopbus.New(nil)
	ctx := context.Background()
	args := sampleArgs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.EmitArgs(ctx, "nobody", args)
	}
}

// BenchmarkEmit_Subscribers measures fan-out to 1, 10, and 100 subscribers on
// one loop, including the time to run the handlers.
func BenchmarkEmit_Subscribers(b *testing.B) {
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("subs=%d", n), func(b *testing.B) {
			l := startLoop(b, "bench")
			bus := loopbus.New(l)
			for i := 0; i < n; i++ {
				if _, err := bus.On("k", func(value.Args) error { return nil }); err != nil {
					b.Fatal(err)
				}
			}
			ctx := context.Background()
			args := sampleArgs()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bus.EmitArgs(ctx, "k", args)
			}
			drain(l)
		})
	}
}

// BenchmarkEmit_AcrossLoops spreads 8 subscribers over 4 loops.
func BenchmarkEmit_AcrossLoops(b *testing.B) {
	bus := loopbus.New(nil)
	loops := make([]*loop.Loop, 4)
	for i := range loops {
		loops[i] = startLoop(b, fmt.Sprintf("loop-%d", i))
		for j := 0; j < 2; j++ {
			if _, err := bus.On("k", func(value.Args) error { return nil }, loopbus.OnLoop(loops[i])); err != nil {
				b.Fatal(err)
			}
		}
	}
	ctx := context.Background()
	args := sampleArgs()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.EmitArgs(ctx, "k", args)
	}
	for _, l := range loops {
		drain(l)
	}
}

// BenchmarkEmit_Parallel emits from many goroutines into one loop.
func BenchmarkEmit_Parallel(b *testing.B) {
	l := startLoop(b, "bench")
	bus := loopbus.New(l)
	if _, err := bus.On("k", func(value.Args) error { return nil }); err != nil {
		b.Fatal(err)
	}
	args := sampleArgs()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			bus.EmitArgs(ctx, "k", args)
		}
	})
	drain(l)
}

// BenchmarkEmitAny measures the cost of converting Go values on emit.
func BenchmarkEmitAny(b *testing.B) {
	bus := loopbus.New(nil)
	ctx := context.Background()
	payload := map[string]any{"sku": "A-100", "qty": 3, "tags": []any{"red", "xl"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.EmitAny(ctx, "nobody", "order-42", payload)
	}
}

// BenchmarkRequest measures a synchronous request round trip.
func BenchmarkRequest(b *testing.B) {
	l := startLoop(b, "bench")
	bus := loopbus.New(l)
	err := bus.OnRequest("echo", func(args value.Args) (value.Value, error) {
		return args.At(0), nil
	})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bus.Request(ctx, "echo", value.Int32(int32(i))); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkOnAndEmit mixes registrations with emits on the same key.
func BenchmarkOnAndEmit(b *testing.B) {
	l := startLoop(b, "bench")
	bus := loopbus.New(l)
	ctx := context.Background()
	args := sampleArgs()

	var wg sync.WaitGroup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := bus.On("k", func(value.Args) error { return nil })
			if err == nil {
				bus.Off("k", id)
			}
		}()
		bus.EmitArgs(ctx, "k", args)
	}
	wg.Wait()
	drain(l)
}
