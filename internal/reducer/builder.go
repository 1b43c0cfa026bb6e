package reducer

import "github.com/dshills/statekit/internal/action"

// Case is a state transition for one matched action.
// A case must not mutate state it did not copy, perform I/O or dispatch.
type Case[S any] func(state S, a action.Action) S

// AsyncCases holds the handlers for the lifecycle of one async operation.
// Nil handlers are skipped.
type AsyncCases[S any] struct {
	Pending   Case[S]
	Fulfilled Case[S]
	Rejected  Case[S]
}

type entry[S any] struct {
	match   Matcher
	handler Case[S]
}

// Builder accumulates case registrations for one slice.
// A Builder is not safe for concurrent use.
type Builder[S any] struct {
	entries     []entry[S]
	defaultCase Case[S]
}

// NewBuilder creates an empty builder.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{}
}

// AddCase registers c for actions of exactly actionType.
func (b *Builder[S]) AddCase(actionType string, c Case[S]) *Builder[S] {
	return b.AddMatcher(OfType(actionType), c)
}

// AddMatcher registers c for actions accepted by m.
func (b *Builder[S]) AddMatcher(m Matcher, c Case[S]) *Builder[S] {
	if m == nil || c == nil {
		return b
	}
	b.entries = append(b.entries, entry[S]{match: m, handler: c})
	return b
}

// AddAsync registers the lifecycle handlers of the async operation t.
func (b *Builder[S]) AddAsync(t action.AsyncTypes, cases AsyncCases[S]) *Builder[S] {
	b.AddMatcher(OfType(t.Pending()), cases.Pending)
	b.AddMatcher(OfType(t.Fulfilled()), cases.Fulfilled)
	b.AddMatcher(OfType(t.Rejected()), cases.Rejected)
	return b
}

// AddDefault registers c to run when no other registration matches.
// A later call replaces an earlier one.
func (b *Builder[S]) AddDefault(c Case[S]) *Builder[S] {
	b.defaultCase = c
	return b
}

// Len returns the number of registrations, excluding the default case.
func (b *Builder[S]) Len() int {
	return len(b.entries)
}

// Build compiles the registrations into a Reducer.
// Later changes to the builder do not affect the returned Reducer.
func (b *Builder[S]) Build() Reducer[S] {
	entries := make([]entry[S], len(b.entries))
	copy(entries, b.entries)
	return Reducer[S]{entries: entries, defaultCase: b.defaultCase}
}

// Reducer is a compiled, ordered set of case registrations.
// The zero Reducer matches nothing.
type Reducer[S any] struct {
	entries     []entry[S]
	defaultCase Case[S]
}

// Matches reports whether any registration, including the default case,
// would run for a.
func (r Reducer[S]) Matches(a action.Action) bool {
	if r.defaultCase != nil {
		return true
	}
	for _, e := range r.entries {
		if e.match(a) {
			return true
		}
	}
	return false
}

// Reduce applies every matching case to state in registration order.
// It returns state unchanged and false when nothing matched.
func (r Reducer[S]) Reduce(state S, a action.Action) (S, bool) {
	matched := false
	for _, e := range r.entries {
		if !e.match(a) {
			continue
		}
		state = e.handler(state, a)
		matched = true
	}

	if !matched && r.defaultCase != nil {
		return r.defaultCase(state, a), true
	}
	return state, matched
}

// Func returns the reducer as a plain state transition function.
func (r Reducer[S]) Func() func(S, action.Action) S {
	return func(state S, a action.Action) S {
		next, _ := r.Reduce(state, a)
		return next
	}
}
