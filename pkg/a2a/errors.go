package a2a

import "errors"

// Sentinel errors for protocol-level failures. Callers match with errors.Is.
var (
	// ErrUnknownContentKind is returned when decoding content whose "type"
	// discriminator names no known variant.
	ErrUnknownContentKind = errors.New("unknown content kind")

	// ErrBadEnum is returned when a string does not name a valid enum value
	// (role, task state, edge type, ...).
	ErrBadEnum = errors.New("bad enum value")

	// ErrTaskNotFound is returned by task operations referencing an unknown id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTerminalState is returned when a transition is attempted on a task
	// already in a terminal state.
	ErrTerminalState = errors.New("task is in terminal state")

	// ErrConnection wraps transport-level failures surfaced by clients.
	ErrConnection = errors.New("connection error")
)
