package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/pipeline"
)

// PanicError is returned by Recover when a later handler panicked.
type PanicError struct {
	Action string
	Value  any
	Stack  string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("middleware: panic dispatching %q: %v", e.Action, e.Value)
}

// Recover returns middleware that turns a panic in any inner middleware,
// thunk or reducer into a *PanicError.
func Recover(l *logging.Logger) pipeline.Middleware {
	if l == nil {
		l = logging.Discard()
	}
	l = l.WithComponent("recover")

	return func(action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (result any, err error) {
				defer func() {
					if r := recover(); r != nil {
						perr := &PanicError{Action: nameOf(d), Value: r, Stack: string(debug.Stack())}
						l.WithField("action", perr.Action).Error("%v\n%s", perr, perr.Stack)
						result, err = nil, perr
					}
				}()
				return next(ctx, d)
			}
		}
	}
}
