package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when the requested edge is not in the transition table
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalState is returned when the request is already in a terminal status
	ErrTerminalState = errors.New("request is in a terminal status")

	// ErrInvalidStatus is returned when a status is not a known lifecycle status
	ErrInvalidStatus = errors.New("invalid status")
)
