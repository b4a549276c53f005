package event

import (
	"github.com/randalmurphal/loopbus/pkg/loopbus/loop"
	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// Handler is a subscriber bound to an execution loop.
// Handle is only ever called on the goroutine driving Loop().
type Handler interface {
	// Handle processes one emitted argument list.
	Handle(args value.Args) error

	// Loop returns the loop the handler must run on.
	Loop() *loop.Loop
}

// HandlerFunc is the signature of native Go handlers.
type HandlerFunc func(args value.Args) error

// NativeHandler binds a Go function to a loop.
type NativeHandler struct {
	fn   HandlerFunc
	loop *loop.Loop
}

// NewNativeHandler binds fn to l.
func NewNativeHandler(l *loop.Loop, fn HandlerFunc) *NativeHandler {
	return &NativeHandler{fn: fn, loop: l}
}

// Handle implements Handler.
func (h *NativeHandler) Handle(args value.Args) error {
	return h.fn(args)
}

// Loop implements Handler.
func (h *NativeHandler) Loop() *loop.Loop {
	return h.loop
}

// RequestHandler answers requests on its bound loop.
type RequestHandler interface {
	// HandleRequest returns the reply for one request, or an error that is
	// delivered to the requester as a thrown reply.
	HandleRequest(args value.Args) (value.Value, error)

	// Loop returns the loop the handler must run on.
	Loop() *loop.Loop
}

// RequestFunc is the signature of native Go request handlers.
type RequestFunc func(args value.Args) (value.Value, error)

// NativeRequestHandler binds a Go request function to a loop.
type NativeRequestHandler struct {
	fn   RequestFunc
	loop *loop.Loop
}

// NewNativeRequestHandler binds fn to l.
func NewNativeRequestHandler(l *loop.Loop, fn RequestFunc) *NativeRequestHandler {
	return &NativeRequestHandler{fn: fn, loop: l}
}

// HandleRequest implements RequestHandler.
func (h *NativeRequestHandler) HandleRequest(args value.Args) (value.Value, error) {
	return h.fn(args)
}

// Loop implements RequestHandler.
func (h *NativeRequestHandler) Loop() *loop.Loop {
	return h.loop
}

var (
	_ Handler        = (*NativeHandler)(nil)
	_ RequestHandler = (*NativeRequestHandler)(nil)
)
