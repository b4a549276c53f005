// Package script exposes a Bus to Lua code.
//
// A Context owns one gopher-lua state and the loop that state lives on. Every
// access to the state, including handler calls made by the bus, happens on
// that loop's goroutine, so a script can subscribe and emit without locking:
//
//	l := loop.New("lua")
//	go l.Run(ctx)
//
//	sc, err := script.New(bus, l)
//	if err != nil {
//		return err
//	}
//	defer sc.Close(ctx)
//
//	err = sc.Do(ctx, `
//		bus.on("ping", function(n) bus.emit("pong", n + 1) end)
//		bus.onRequest("add", function(a, b) return a + b end)
//	`)
//
// Values cross the boundary through ToValue and FromValue. Lua numbers
// become the narrowest integer kind when integral, tables with keys 1..n
// become arrays and other tables become objects with sorted keys.
package script
