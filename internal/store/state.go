package store

import "fmt"

// State is a read-only snapshot of the whole state tree.
// Slice values are shared with the store and must not be mutated.
type State struct {
	values map[string]any
	order  []string
}

// Get returns the value of the named slice.
func (s State) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns the slice names in creation order.
func (s State) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of slices.
func (s State) Len() int {
	return len(s.order)
}

// From returns the named slice of st as an S.
func From[S any](st State, name string) (S, bool) {
	v, ok := st.values[name]
	if !ok {
		var zero S
		return zero, false
	}
	typed, ok := v.(S)
	return typed, ok
}

func typeName[S any]() string {
	var zero S
	return fmt.Sprintf("%T", &zero)[1:]
}
