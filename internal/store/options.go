package store

import (
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/store/queue"
)

// Options holds store configuration.
type Options struct {
	// MaxDispatchDepth bounds nested draining of the dispatch queue.
	MaxDispatchDepth int

	// RecoverFromPanic recovers and logs reducer and listener panics.
	// When false a panic unwinds through Dispatch.
	RecoverFromPanic bool

	// DisableThunk leaves the thunk middleware out of the default pipeline.
	DisableThunk bool

	// Logger receives diagnostics. Nil discards them.
	Logger *logging.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		MaxDispatchDepth: queue.DefaultMaxDepth,
		RecoverFromPanic: true,
	}
}

// WithMaxDispatchDepth returns a copy of the options with the depth bound set.
func (o Options) WithMaxDispatchDepth(n int) Options {
	o.MaxDispatchDepth = n
	return o
}

// WithPanicRecovery returns a copy of the options with panic recovery set.
func (o Options) WithPanicRecovery(recover bool) Options {
	o.RecoverFromPanic = recover
	return o
}

// WithoutThunk returns a copy of the options with the thunk middleware suppressed.
func (o Options) WithoutThunk() Options {
	o.DisableThunk = true
	return o
}

// WithLogger returns a copy of the options with the logger set.
func (o Options) WithLogger(l *logging.Logger) Options {
	o.Logger = l
	return o
}
