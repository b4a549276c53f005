/*
Package loopbus provides an in-process event bus whose subscribers are bound
to execution loops.

# Overview

Producers on any goroutine emit ordered argument lists to named event keys.
Each subscriber is bound to a loop.Loop and is only ever invoked on the
goroutine driving that loop. Emit never blocks on a handler and never waits
for delivery.

	mainLoop := loop.New("main")
	bus := loopbus.New(mainLoop)

	id, err := bus.On("ping", func(args value.Args) error {
	    fmt.Println("ping", args)
	    return nil
	})

	go mainLoop.Run(ctx)

	// From any goroutine:
	bus.Emit(ctx, "ping", value.Int32(1), value.String("x"))

# Delivery

An emit takes a snapshot of the key's subscribers and queues one task per
subscriber on that subscriber's loop. Handlers on the same loop run in
registration order. Handlers on different loops run concurrently.

Arguments are immutable value.Args. One list is shared by every delivery of
an emit, and the caller's slice is copied, so mutating it after Emit returns
is never observed by a handler.

Emitting to a key nobody registered is a no-op and creates nothing.

# Errors

Handler errors and panics never reach the emitter. They go to the handler
loop's error handler (see HandleLoopError) and, when configured, to the
dead-letter store. A delivery whose loop is closed before it runs is
discarded, logged, and recorded as an orphaned dead letter.

# Unregistering

Off removes one registration. Deliveries already queued still run. Channels
are never removed.

# Requests

OnRequest registers the single handler for a key; Request and RequestAsync
call it on its loop and return its reply:

	_ = bus.OnRequest("sum", func(args value.Args) (value.Value, error) {
	    a, _ := args.At(0).AsInt64()
	    b, _ := args.At(1).AsInt64()
	    return value.Int64(a + b), nil
	}, loopbus.OnLoop(worker))

	reply, err := bus.Request(ctx, "sum", value.Int32(1), value.Int32(2))

# Observability

	bus := loopbus.New(mainLoop,
	    loopbus.WithLogger(logger),
	    loopbus.WithMetrics(true),
	    loopbus.WithTracing(true),
	    loopbus.WithDeadLetters(store),
	)

Open builds a bus from config.Settings.

# Scripting

Package script binds a Lua state to a loop and exposes on, emit, and
onRequest to it. Lua handlers are ordinary subscribers of the bus.
*/
package loopbus
