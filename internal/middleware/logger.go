package middleware

import (
	"context"
	"time"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/pipeline"
)

// Logger returns middleware that logs every action at debug level and
// every failed dispatch at error level. Thunks are logged by name only.
func Logger(l *logging.Logger) pipeline.Middleware {
	if l == nil {
		l = logging.Discard()
	}
	l = l.WithComponent("dispatch")

	return func(action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				name := nameOf(d)
				start := time.Now()

				result, err := next(ctx, d)

				entry := l.WithFields(map[string]any{
					"action":   name,
					"duration": time.Since(start).Round(time.Microsecond),
				})
				if err != nil {
					entry.Error("dispatch failed: %v", err)
				} else if l.Enabled(logging.LevelDebug) {
					if a, ok := d.(action.Action); ok && a.Err != nil {
						entry = entry.WithField("error", a.Err)
					}
					entry.Debug("dispatch complete")
				}
				return result, err
			}
		}
	}
}

// nameOf returns the action type, or "thunk" for a thunk.
func nameOf(d action.Dispatchable) string {
	if a, ok := d.(action.Action); ok {
		return a.Type
	}
	return "thunk"
}
