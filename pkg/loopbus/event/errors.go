package event

import (
	"errors"
	"fmt"
)

// ErrNoLoop is returned when a handler is not bound to any loop.
var ErrNoLoop = errors.New("handler has no loop")

// HandlerError reports a failed delivery. It is produced on the subscriber's
// loop and goes to that loop's error handler, never back to the emitter.
type HandlerError struct {
	Key       string    // Event key of the delivery
	HandlerID HandlerID // Subscriber that failed
	Loop      string    // Loop the handler ran on
	Err       error     // Error returned or panic recovered from the handler
}

// Error implements error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("event %q: handler %d on loop %s: %v", e.Key, e.HandlerID, e.Loop, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// DiscardError reports a delivery dropped because its loop was closed.
type DiscardError struct {
	Key       string
	HandlerID HandlerID
	Loop      string
	Err       error
}

// Error implements error interface.
func (e *DiscardError) Error() string {
	return fmt.Sprintf("event %q: delivery to handler %d on loop %s discarded: %v", e.Key, e.HandlerID, e.Loop, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscardError) Unwrap() error {
	return e.Err
}
