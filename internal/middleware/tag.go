package middleware

import (
	"context"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/pipeline"
)

// Tag returns middleware that sets a metadata key on every action that does
// not already carry it. Thunks pass through; the actions they dispatch are
// tagged when they run through the same pipeline.
func Tag(key string, value any) pipeline.Middleware {
	return func(action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				if a, ok := d.(action.Action); ok {
					if _, set := a.MetaValue(key); !set {
						d = a.WithMeta(key, value)
					}
				}
				return next(ctx, d)
			}
		}
	}
}

// Filter returns middleware that drops actions for which allow returns
// false. Dropped actions return a nil result and no error.
func Filter(allow func(action.Action) bool) pipeline.Middleware {
	return func(action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				if a, ok := d.(action.Action); ok && allow != nil && !allow(a) {
					return nil, nil
				}
				return next(ctx, d)
			}
		}
	}
}
