package store

import (
	"context"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/pipeline"
)

// API is an immutable dispatch entry point over a store.
// It carries its own middleware stack and is the action.Dispatcher that
// middleware and thunks receive, so dispatches they issue run through the
// same stack.
type API struct {
	store *Store
	stack pipeline.Stack
}

var _ action.Dispatcher = (*API)(nil)

// Dispatch sends d through this API's middleware stack.
func (a *API) Dispatch(ctx context.Context, d action.Dispatchable) (any, error) {
	if d == nil {
		return nil, ErrInvalidAction
	}
	if a.store.IsDisposed() {
		return nil, ErrDisposed
	}
	h := a.stack.Compose(a, a.store.terminal)
	return h(ctx, d)
}

// GetState returns the current value of the named slice.
func (a *API) GetState(name string) (any, error) {
	return a.store.GetState(name)
}

// State returns a snapshot of the whole state tree.
func (a *API) State() State {
	return a.store.State()
}

// With returns a new API with mw outside this API's stack.
func (a *API) With(mw pipeline.Middleware) *API {
	return &API{store: a.store, stack: a.stack.Push(mw)}
}

// Store returns the underlying store.
func (a *API) Store() *Store {
	return a.store
}

// Middleware returns the number of middleware in this API's stack.
func (a *API) Middleware() int {
	return a.stack.Len()
}

// Select returns the named slice, as seen through d, as an S.
func Select[S any](d action.Dispatcher, name string) (S, error) {
	var zero S
	v, err := d.GetState(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(S)
	if !ok {
		return zero, &StateTypeError{Name: name, Want: typeName[S](), Got: typeOf(v)}
	}
	return typed, nil
}
