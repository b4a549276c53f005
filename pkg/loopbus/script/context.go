package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/randalmurphal/loopbus/pkg/loopbus"
	"github.com/randalmurphal/loopbus/pkg/loopbus/event"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
)

// DefaultGlobal is the name of the bus table installed in the Lua state.
const DefaultGlobal = "bus"

// Option configures a Context.
type Option func(*Context)

// WithGlobal sets the name of the global bus table.
func WithGlobal(name string) Option {
	return func(c *Context) {
		if name != "" {
			c.global = name
		}
	}
}

// WithLogger sets the logger used for script diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// subscription is one on() registration made by the script.
type subscription struct {
	key string
	id  event.HandlerID
}

// Context binds a Lua state to a Bus and a loop.
//
// The Lua state is not goroutine-safe. After New returns it is only touched by
// tasks running on the loop, which is why Do and Close hand their work to the
// loop and wait. Neither may be called from the loop goroutine itself.
type Context struct {
	bus    *loopbus.Bus
	loop   *loop.Loop
	global string
	logger *slog.Logger

	// Fields below are owned by the loop goroutine.
	state    *lua.LState
	closed   bool
	subs     []subscription
	requests map[string]*RequestHandler
}

// New creates a Lua state bound to l and installs the bus table. The loop
// does not need to be running yet.
func New(bus *loopbus.Bus, l *loop.Loop, opts ...Option) (*Context, error) {
	if bus == nil {
		return nil, fmt.Errorf("script: nil bus")
	}
	if l == nil {
		return nil, loopbus.ErrNoLoop
	}

	c := &Context{
		bus:      bus,
		loop:     l,
		global:   DefaultGlobal,
		logger:   bus.Logger(),
		requests: make(map[string]*RequestHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	c.state = L
	c.install()

	return c, nil
}

// openSafeLibraries opens the libraries that cannot reach the host.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// Loop returns the loop the Lua state lives on.
func (c *Context) Loop() *loop.Loop { return c.loop }

// Global returns the name of the bus table.
func (c *Context) Global() string { return c.global }

// Do runs a Lua chunk on the loop and waits for it to finish.
func (c *Context) Do(ctx context.Context, src string) error {
	return c.run(ctx, func(L *lua.LState) error {
		return L.DoString(src)
	})
}

// DoFile runs a Lua file on the loop and waits for it to finish.
func (c *Context) DoFile(ctx context.Context, path string) error {
	return c.run(ctx, func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// Close detaches every handler the script registered and closes the Lua
// state. Deliveries already queued for the script fail with ErrClosed.
// If the loop was closed first, Close waits for it to stop before touching
// the state. Closing twice is a no-op.
func (c *Context) Close(ctx context.Context) error {
	err := c.run(ctx, func(*lua.LState) error {
		c.shutdown()
		return nil
	})
	if err == nil || errors.Is(err, ErrClosed) {
		return nil
	}
	if !errors.Is(err, loop.ErrClosed) {
		return err
	}

	// A chunk may still be running on the closed loop. Once the loop has
	// stopped nothing else can reach the state.
	select {
	case <-c.loop.Stopped():
	case <-ctx.Done():
		return ctx.Err()
	}
	c.shutdown()
	return nil
}

// shutdown runs on the loop, or after the loop has stopped.
func (c *Context) shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	c.logger.Debug("script context closed",
		slog.String("global", c.global),
		slog.Int("handlers", len(c.subs)),
		slog.Int("request_handlers", len(c.requests)),
	)

	for _, s := range c.subs {
		c.bus.Off(s.key, s.id)
	}
	for key, h := range c.requests {
		c.bus.DetachRequest(key, h)
	}
	c.subs, c.requests = nil, nil
	c.state.Close()
}

// run executes fn on the loop and waits for its result.
func (c *Context) run(ctx context.Context, fn func(L *lua.LState) error) error {
	t := &stateTask{ctx: ctx, c: c, fn: fn, done: make(chan error, 1)}
	if err := c.loop.Submit(t); err != nil {
		return fmt.Errorf("script: %w", err)
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stateTask runs one operation against the Lua state on the loop.
type stateTask struct {
	ctx  context.Context
	c    *Context
	fn   func(L *lua.LState) error
	done chan error
}

// Run implements loop.Task. Errors go back to the waiting caller, not to
// the loop's error handler.
func (t *stateTask) Run() error {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return nil
	}
	if t.c.closed {
		t.done <- ErrClosed
		return nil
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lua panic: %v", r)
			}
		}()
		err = t.fn(t.c.state)
	}()
	t.done <- err
	return nil
}

// Discard implements loop.Discarder.
func (t *stateTask) Discard(err error) {
	t.done <- fmt.Errorf("script: %w", err)
}
