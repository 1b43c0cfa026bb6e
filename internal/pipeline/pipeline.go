// Package pipeline composes dispatch middleware.
//
// A Middleware is a three-level curried function: it receives the store API,
// then the next Handler in the chain, and returns the Handler that processes
// a dispatched value. A Stack is folded so the first pushed middleware sits
// innermost, next to the terminal handler, and the most recently pushed one
// is outermost and sees every dispatch first.
package pipeline

import (
	"context"

	"github.com/dshills/statekit/internal/action"
)

// Handler processes one dispatched value.
type Handler func(ctx context.Context, d action.Dispatchable) (any, error)

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(api action.Dispatcher) func(next Handler) Handler

// Stack is an immutable, ordered list of middleware.
// The zero Stack is empty and ready to use.
type Stack struct {
	mws []Middleware
}

// NewStack creates a stack from mws, innermost first.
func NewStack(mws ...Middleware) Stack {
	return Stack{}.Push(mws...)
}

// Push returns a new stack with mws added outside the existing ones.
// Nil middleware are ignored.
func (s Stack) Push(mws ...Middleware) Stack {
	next := make([]Middleware, 0, len(s.mws)+len(mws))
	next = append(next, s.mws...)
	for _, mw := range mws {
		if mw != nil {
			next = append(next, mw)
		}
	}
	return Stack{mws: next}
}

// Len returns the number of middleware in the stack.
func (s Stack) Len() int {
	return len(s.mws)
}

// Compose builds the handler chain around terminal.
// Each middleware is given api as its store API.
func (s Stack) Compose(api action.Dispatcher, terminal Handler) Handler {
	h := terminal
	for _, mw := range s.mws {
		h = mw(api)(h)
	}
	return h
}
