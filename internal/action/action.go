package action

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatchable is a value accepted by Dispatcher.Dispatch.
// It is implemented only by Action and Thunk.
type Dispatchable interface {
	dispatchable()
}

// Dispatcher is the view of a store handed to thunks and middleware.
type Dispatcher interface {
	// Dispatch sends an action or thunk through the middleware pipeline.
	// It returns once the value and everything it triggered has been processed.
	Dispatch(ctx context.Context, d Dispatchable) (any, error)

	// GetState returns the current value of the named slice.
	GetState(slice string) (any, error)
}

// Thunk is a deferred operation dispatched in place of a plain action.
// The value it returns is handed back to the caller of Dispatch.
type Thunk func(ctx context.Context, d Dispatcher) (any, error)

func (Thunk) dispatchable() {}

// Action is a tagged value routed to reducers by Type.
// Action values are immutable; the With* methods return modified copies.
type Action struct {
	// ID uniquely identifies this action instance.
	ID string

	// Type is the discriminator reducers match on.
	Type string

	// Payload is the action-specific data.
	Payload any

	// Meta carries out-of-band context such as tags added by middleware.
	Meta map[string]any

	// Err is set on rejected lifecycle actions.
	Err error

	// Target names the slices the action is routed to.
	// An empty Target routes the action to every slice.
	Target []string

	// Timestamp is when the action was created.
	Timestamp time.Time
}

func (Action) dispatchable() {}

// New creates an action of the given type.
func New(actionType string, payload any) Action {
	return Action{
		ID:        uuid.NewString(),
		Type:      actionType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Failed creates an action carrying an error.
func Failed(actionType string, payload any, err error) Action {
	a := New(actionType, payload)
	a.Err = err
	return a
}

// To returns a copy of the action routed only to the named slices.
func (a Action) To(slices ...string) Action {
	a.Target = append([]string(nil), slices...)
	return a
}

// WithMeta returns a copy of the action with key set in its metadata.
func (a Action) WithMeta(key string, value any) Action {
	meta := make(map[string]any, len(a.Meta)+1)
	for k, v := range a.Meta {
		meta[k] = v
	}
	meta[key] = value
	a.Meta = meta
	return a
}

// WithPayload returns a copy of the action with a different payload.
func (a Action) WithPayload(payload any) Action {
	a.Payload = payload
	return a
}

// MetaValue returns the metadata value stored under key.
func (a Action) MetaValue(key string) (any, bool) {
	v, ok := a.Meta[key]
	return v, ok
}

// Is reports whether the action has one of the given types.
func (a Action) Is(types ...string) bool {
	for _, t := range types {
		if a.Type == t {
			return true
		}
	}
	return false
}

// Targets reports whether the action is routed to slice.
func (a Action) Targets(slice string) bool {
	if len(a.Target) == 0 {
		return true
	}
	for _, name := range a.Target {
		if name == slice {
			return true
		}
	}
	return false
}

// String returns the action type.
func (a Action) String() string {
	return a.Type
}

// PayloadAs returns the action payload as a T.
func PayloadAs[T any](a Action) (T, bool) {
	v, ok := a.Payload.(T)
	return v, ok
}

// AsyncTypes names the lifecycle actions of one asynchronous operation.
type AsyncTypes struct {
	Prefix string
}

// Async returns the lifecycle types for prefix.
func Async(prefix string) AsyncTypes {
	return AsyncTypes{Prefix: prefix}
}

// Pending is dispatched before the operation starts.
func (t AsyncTypes) Pending() string { return t.Prefix + "/pending" }

// Fulfilled is dispatched with the operation's result.
func (t AsyncTypes) Fulfilled() string { return t.Prefix + "/fulfilled" }

// Rejected is dispatched with the operation's error.
func (t AsyncTypes) Rejected() string { return t.Prefix + "/rejected" }

// Types returns the three lifecycle types in order.
func (t AsyncTypes) Types() []string {
	return []string{t.Pending(), t.Fulfilled(), t.Rejected()}
}
