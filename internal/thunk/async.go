// Package thunk builds thunks that report the lifecycle of an asynchronous
// operation as pending, fulfilled and rejected actions.
package thunk

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dshills/statekit/internal/action"
)

// Metadata keys set on lifecycle actions.
const (
	MetaRequestID = "requestId"
	MetaArg       = "arg"
)

// Func is the operation run by an Async thunk.
type Func[A, R any] func(ctx context.Context, d action.Dispatcher, arg A) (R, error)

// Async creates thunks for one asynchronous operation.
type Async[A, R any] struct {
	types action.AsyncTypes
	run   Func[A, R]
}

// CreateAsync returns an Async whose lifecycle action types start with prefix.
func CreateAsync[A, R any](prefix string, run Func[A, R]) *Async[A, R] {
	return &Async[A, R]{types: action.Async(prefix), run: run}
}

// Types returns the lifecycle action types.
func (t *Async[A, R]) Types() action.AsyncTypes {
	return t.types
}

// Thunk returns a thunk that dispatches the pending action, runs the
// operation, then dispatches the fulfilled action with its result or the
// rejected action with its error. The thunk returns the operation's result.
//
// The rejected action is dispatched even when ctx has been cancelled, so
// slices can clear in-flight state.
func (t *Async[A, R]) Thunk(arg A) action.Thunk {
	return func(ctx context.Context, d action.Dispatcher) (any, error) {
		requestID := uuid.NewString()
		tag := func(a action.Action) action.Action {
			return a.WithMeta(MetaRequestID, requestID).WithMeta(MetaArg, arg)
		}

		if _, err := d.Dispatch(ctx, tag(action.New(t.types.Pending(), nil))); err != nil {
			return nil, err
		}

		result, err := t.run(ctx, d, arg)
		if err != nil {
			rejected := tag(action.Failed(t.types.Rejected(), nil, err))
			if _, derr := d.Dispatch(context.WithoutCancel(ctx), rejected); derr != nil {
				return nil, errors.Join(err, derr)
			}
			return nil, err
		}

		if _, err := d.Dispatch(ctx, tag(action.New(t.types.Fulfilled(), result))); err != nil {
			return result, err
		}
		return result, nil
	}
}

// Run dispatches the thunk for arg through d and returns the typed result.
func (t *Async[A, R]) Run(ctx context.Context, d action.Dispatcher, arg A) (R, error) {
	var zero R
	v, err := d.Dispatch(ctx, t.Thunk(arg))
	if err != nil {
		if r, ok := v.(R); ok {
			return r, err
		}
		return zero, err
	}
	r, _ := v.(R)
	return r, nil
}
