package loopbus

import (
	"fmt"
	"io"
	"os"

	"github.com/randalmurphal/loopbus/pkg/loopbus/config"
	"github.com/randalmurphal/loopbus/pkg/loopbus/deadletter"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
)

// Open builds a Bus from settings. It creates and owns the default loop and,
// when configured, the dead-letter store; Close releases both. The caller
// drives the default loop:
//
//	bus, err := loopbus.Open(settings)
//	if err != nil {
//	    return err
//	}
//	defer bus.Close()
//	go bus.DefaultLoop().Run(ctx)
//
// Options are applied after the settings and override them.
func Open(settings config.Settings, opts ...Option) (*Bus, error) {
	return openWithOutput(settings, os.Stderr, opts...)
}

func openWithOutput(settings config.Settings, w io.Writer, opts ...Option) (*Bus, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := settings.Logger(w)
	base := []Option{
		WithLogger(logger),
		WithMetrics(settings.Metrics),
		WithTracing(settings.Tracing),
		WithRequestTimeout(settings.RequestTimeout),
	}

	var store deadletter.Store
	switch settings.DeadLetters {
	case config.DeadLettersOff:
	case config.DeadLettersMemory:
		store = deadletter.NewMemoryStore()
	default:
		s, err := deadletter.NewSQLiteStore(settings.DeadLetters)
		if err != nil {
			return nil, fmt.Errorf("open dead letters: %w", err)
		}
		store = s
	}
	if store != nil {
		base = append(base, WithDeadLetters(store))
	}

	var b *Bus
	l := loop.New(settings.DefaultLoop,
		loop.WithLogger(logger),
		loop.WithErrorHandler(func(err error) { b.HandleLoopError(err) }),
	)
	b = New(l, append(base, opts...)...)

	b.owned = append(b.owned, closerFunc(func() error {
		l.Close()
		return nil
	}))
	if store != nil {
		b.owned = append(b.owned, store)
	}
	return b, nil
}

// DeadLetters returns the dead-letter store, or nil when none is configured.
func (b *Bus) DeadLetters() deadletter.Store {
	return b.deadLetters
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
