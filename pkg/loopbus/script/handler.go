package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/randalmurphal/loopbus/pkg/loopbus/event"
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// Handler delivers events to a Lua function. It runs on the Context's loop.
type Handler struct {
	c  *Context
	fn *lua.LFunction
}

// NewHandler wraps fn, which must belong to c's Lua state.
func NewHandler(c *Context, fn *lua.LFunction) *Handler {
	return &Handler{c: c, fn: fn}
}

// Handle implements event.Handler. Lua errors are returned as Go errors so
// they reach the loop's error handler.
func (h *Handler) Handle(args value.Args) error {
	if h.c.closed {
		return ErrClosed
	}
	_, err := h.c.call(h.fn, 0, args)
	return err
}

// Loop implements event.Handler.
func (h *Handler) Loop() *loop.Loop { return h.c.loop }

// RequestHandler answers requests with a Lua function. The first value the
// function returns is the reply; a raised Lua error is the failure.
type RequestHandler struct {
	c  *Context
	fn *lua.LFunction
}

// NewRequestHandler wraps fn, which must belong to c's Lua state.
func NewRequestHandler(c *Context, fn *lua.LFunction) *RequestHandler {
	return &RequestHandler{c: c, fn: fn}
}

// HandleRequest implements event.RequestHandler.
func (h *RequestHandler) HandleRequest(args value.Args) (value.Value, error) {
	if h.c.closed {
		return value.Null(), ErrClosed
	}
	rets, err := h.c.call(h.fn, 1, args)
	if err != nil {
		return value.Null(), err
	}
	return rets[0], nil
}

// Loop implements event.RequestHandler.
func (h *RequestHandler) Loop() *loop.Loop { return h.c.loop }

// call invokes fn with args in protected mode and converts nret results.
func (c *Context) call(fn *lua.LFunction, nret int, args value.Args) ([]value.Value, error) {
	L := c.state
	largs := make([]lua.LValue, args.Len())
	for i := range largs {
		largs[i] = FromValue(L, args.At(i))
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, largs...); err != nil {
		return nil, fmt.Errorf("lua handler: %w", err)
	}
	if nret == 0 {
		return nil, nil
	}

	rets := make([]value.Value, nret)
	for i := 0; i < nret; i++ {
		rets[i] = ToValue(L.Get(-nret + i))
	}
	L.Pop(nret)
	return rets, nil
}

var (
	_ event.Handler        = (*Handler)(nil)
	_ event.RequestHandler = (*RequestHandler)(nil)
)
