package pipeline

import (
	"context"

	"github.com/dshills/statekit/internal/action"
)

// Thunk returns the middleware that runs thunks instead of forwarding them.
// A thunk is invoked with the store API and its result becomes the result of
// the dispatch. Plain actions are passed to next unchanged.
func Thunk() Middleware {
	return func(api action.Dispatcher) func(next Handler) Handler {
		return func(next Handler) Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				t, ok := d.(action.Thunk)
				if !ok {
					return next(ctx, d)
				}
				if t == nil {
					return nil, nil
				}
				return t(ctx, api)
			}
		}
	}
}
