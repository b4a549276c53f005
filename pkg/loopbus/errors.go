package loopbus

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/loopbus/pkg/loopbus/event"
)

// Sentinel errors for registration.
var (
	// ErrEmptyKey indicates On or OnRequest was called with an empty event key.
	ErrEmptyKey = errors.New("event key must not be empty")

	// ErrNilHandler indicates a nil handler function or Handler.
	ErrNilHandler = errors.New("handler must not be nil")

	// ErrNoLoop indicates the handler has no loop and the bus has no default loop.
	ErrNoLoop = event.ErrNoLoop
)

// Sentinel errors for requests.
var (
	// ErrRequestHandlerExists indicates a second OnRequest for the same key.
	ErrRequestHandlerExists = errors.New("request handler already registered")

	// ErrNoRequestHandler indicates a request to a key nobody answers.
	ErrNoRequestHandler = errors.New("no request handler registered")
)

// RequestError reports a request whose handler failed, panicked, or was
// dropped before it could run.
type RequestError struct {
	// RequestID identifies the request in logs and traces.
	RequestID string
	// Key is the request key.
	Key string
	// Loop is the loop the handler was bound to.
	Loop string
	// Err is the error returned by the handler, a *loop.PanicError, or
	// loop.ErrClosed when the handler's loop shut down first.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s %q on loop %s: %v", e.RequestID, e.Key, e.Loop, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RequestError) Unwrap() error {
	return e.Err
}
