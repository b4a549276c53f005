package script

import "errors"

// ErrClosed is returned once the Lua state has been closed.
var ErrClosed = errors.New("script context closed")

// Messages raised as Lua errors when a script misuses the bus table.
const (
	msgTwoArguments   = "It must be two arguments"
	msgKeyNotString   = "The key must be a string"
	msgNotFunction    = "The handler must be a function"
	msgNeedsArguments = "At least one argument is required"
)
