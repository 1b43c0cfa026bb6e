package store

import (
	"fmt"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/reducer"
)

// SliceConfig describes a slice to create.
type SliceConfig[S any] struct {
	// Name identifies the slice. It must be unique within the store.
	Name string

	// InitialState is the slice value before any dispatch.
	InitialState S

	// Reducers registers the cases the slice owns.
	Reducers func(b *reducer.Builder[S])

	// ExtraReducers registers reactions to actions owned elsewhere, such as
	// another slice's actions or an async lifecycle. They run after Reducers
	// on the same duplicated state.
	ExtraReducers func(b *reducer.Builder[S])

	// Duplicate clones the current value before cases run, so cases may
	// modify it in place. It is skipped when no case matches.
	Duplicate func(S) S
}

// Slice is a typed handle to one slice of a store.
type Slice[S any] struct {
	store   *Store
	name    string
	initial S
	primary reducer.Reducer[S]
	extra   reducer.Reducer[S]
}

// CreateSlice registers a slice with st.
// It fails with a DuplicateSliceError if the name is taken.
func CreateSlice[S any](st *Store, cfg SliceConfig[S]) (*Slice[S], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidSlice)
	}

	primary := reducer.NewBuilder[S]()
	if cfg.Reducers != nil {
		cfg.Reducers(primary)
	}
	extra := reducer.NewBuilder[S]()
	if cfg.ExtraReducers != nil {
		cfg.ExtraReducers(extra)
	}

	sl := &Slice[S]{
		store:   st,
		name:    cfg.Name,
		initial: cfg.InitialState,
		primary: primary.Build(),
		extra:   extra.Build(),
	}
	reduce := combine(sl.primary, sl.extra, cfg.Duplicate)

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.slices[cfg.Name]; exists {
		return nil, &DuplicateSliceError{Name: cfg.Name}
	}

	// The reducer is in place before the initial value is.
	e := &sliceEntry{name: cfg.Name, reducer: reduce}
	e.value = cfg.InitialState
	st.slices[cfg.Name] = e
	st.order = append(st.order, cfg.Name)

	st.logger.WithField("slice", cfg.Name).Debug("slice created")
	return sl, nil
}

// combine erases the slice type and joins the primary and extra reducers.
func combine[S any](primary, extra reducer.Reducer[S], duplicate func(S) S) reduceFunc {
	return func(state any, a action.Action) (any, bool) {
		if !primary.Matches(a) && !extra.Matches(a) {
			return state, false
		}

		current, _ := state.(S)
		if duplicate != nil {
			current = duplicate(current)
		}

		current, ownMatched := primary.Reduce(current, a)
		current, extraMatched := extra.Reduce(current, a)
		return current, ownMatched || extraMatched
	}
}

// Name returns the slice name.
func (sl *Slice[S]) Name() string {
	return sl.name
}

// InitialState returns the value the slice was created with.
func (sl *Slice[S]) InitialState() S {
	return sl.initial
}

// State returns the current slice value, or the zero value if the slice
// has been removed.
func (sl *Slice[S]) State() S {
	v, _ := GetState[S](sl.store, sl.name)
	return v
}

// Get returns the current slice value.
func (sl *Slice[S]) Get() (S, error) {
	return GetState[S](sl.store, sl.name)
}

// Subscribe registers fn to receive the slice value after every dispatch
// cycle that routes to this slice.
func (sl *Slice[S]) Subscribe(fn func(S)) (func(), error) {
	return SubscribeSlice(sl.store, sl.name, fn)
}

// Reduce applies the slice's reducers to state without touching the store.
func (sl *Slice[S]) Reduce(state S, a action.Action) S {
	state, _ = sl.primary.Reduce(state, a)
	state, _ = sl.extra.Reduce(state, a)
	return state
}

// Action creates an action of actionType routed only to this slice.
func (sl *Slice[S]) Action(actionType string, payload any) action.Action {
	return action.New(actionType, payload).To(sl.name)
}

// Remove removes the slice from its store.
func (sl *Slice[S]) Remove() {
	sl.store.RemoveSlice(sl.name)
}

// GetState returns the named slice of st as an S.
func GetState[S any](st *Store, name string) (S, error) {
	return Select[S](st, name)
}

// SubscribeSlice registers fn to receive the named slice after every
// dispatch cycle that routes to it. Registering the same function twice
// results in two invocations per cycle.
func SubscribeSlice[S any](st *Store, name string, fn func(S)) (func(), error) {
	if fn == nil {
		return func() {}, nil
	}

	sub := newSubscription(func(v any) {
		typed, ok := v.(S)
		if !ok {
			st.logger.WithField("slice", name).
				Error("listener expects %s, slice holds %s", typeName[S](), typeOf(v))
			return
		}
		fn(typed)
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.slices[name]
	if !ok {
		return nil, &SliceNotFoundError{Name: name}
	}
	e.listeners = append(e.listeners, sub)

	return func() {
		sub.cancel()
		st.mu.Lock()
		defer st.mu.Unlock()
		e.listeners = removeSubscription(e.listeners, sub)
	}, nil
}

func typeOf(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
