package script

import "errors"

var (
	// ErrClosed is returned when using a closed engine.
	ErrClosed = errors.New("script: engine is closed")

	// ErrTimeout is returned when a script call runs past the timeout.
	ErrTimeout = errors.New("script: execution timeout")

	// ErrInvalidResult is returned when on_action returns an unsupported value.
	ErrInvalidResult = errors.New("script: invalid on_action result")
)
