package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for the store.
var (
	// ErrSliceNotFound is returned when a named slice does not exist.
	ErrSliceNotFound = errors.New("store: slice not found")

	// ErrDuplicateSlice is returned when creating a slice whose name is taken.
	ErrDuplicateSlice = errors.New("store: duplicate slice")

	// ErrReducerNotFound is returned when a slice has no reducer registered.
	ErrReducerNotFound = errors.New("store: reducer not found")

	// ErrStateType is returned when a slice value is not of the requested type.
	ErrStateType = errors.New("store: slice state has unexpected type")

	// ErrInvalidAction is returned when an action has no type.
	ErrInvalidAction = errors.New("store: invalid action")

	// ErrInvalidSlice is returned when a slice configuration is invalid.
	ErrInvalidSlice = errors.New("store: invalid slice")

	// ErrUnhandledThunk is returned when a thunk reaches the reducers because
	// no thunk middleware is installed.
	ErrUnhandledThunk = errors.New("store: thunk reached reducers, thunk middleware not installed")

	// ErrDisposed is returned when dispatching into a disposed store.
	ErrDisposed = errors.New("store: store is disposed")
)

// SliceNotFoundError reports a lookup of a slice that does not exist.
type SliceNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *SliceNotFoundError) Error() string {
	return fmt.Sprintf("store: slice %q not found", e.Name)
}

// Is allows errors.Is to match ErrSliceNotFound.
func (e *SliceNotFoundError) Is(target error) bool {
	return target == ErrSliceNotFound
}

// DuplicateSliceError reports an attempt to create a slice twice.
type DuplicateSliceError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateSliceError) Error() string {
	return fmt.Sprintf("store: slice %q already exists", e.Name)
}

// Is allows errors.Is to match ErrDuplicateSlice.
func (e *DuplicateSliceError) Is(target error) bool {
	return target == ErrDuplicateSlice
}

// ReducerNotFoundError reports a slice with no reducer.
type ReducerNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *ReducerNotFoundError) Error() string {
	return fmt.Sprintf("store: no reducer for slice %q", e.Name)
}

// Is allows errors.Is to match ErrReducerNotFound.
func (e *ReducerNotFoundError) Is(target error) bool {
	return target == ErrReducerNotFound
}

// StateTypeError reports a typed read of a slice holding another type.
type StateTypeError struct {
	Name string
	Want string
	Got  string
}

// Error implements the error interface.
func (e *StateTypeError) Error() string {
	return fmt.Sprintf("store: slice %q holds %s, not %s", e.Name, e.Got, e.Want)
}

// Is allows errors.Is to match ErrStateType.
func (e *StateTypeError) Is(target error) bool {
	return target == ErrStateType
}

// PanicError wraps a value recovered from a reducer or listener.
type PanicError struct {
	// Slice is the slice whose reducer or listener panicked, if any.
	Slice string

	// Action is the type of the action being processed.
	Action string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Slice == "" {
		return fmt.Sprintf("store: panic handling %q: %v", e.Action, e.Value)
	}
	return fmt.Sprintf("store: panic in slice %q handling %q: %v", e.Slice, e.Action, e.Value)
}
