package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/config"
	"github.com/dshills/statekit/internal/reducer"
	"github.com/dshills/statekit/internal/store"
	"github.com/dshills/statekit/internal/thunk"
)

// Action types.
const (
	actionIncrement      = "counter/increment"
	actionDecrement      = "counter/decrement"
	actionToggleTodo     = "todos/toggle"
	actionConfigReloaded = "config/reloaded"
)

var errEmptyTodo = errors.New("todo text is empty")

type counterState struct {
	Value int `json:"value"`
}

func createCounter(st *store.Store) (*store.Slice[counterState], error) {
	// Scripts hand numbers back as int64 or float64.
	step := func(a action.Action) int {
		switch n := a.Payload.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		default:
			return 1
		}
	}

	return store.CreateSlice(st, store.SliceConfig[counterState]{
		Name: "counter",
		Reducers: func(b *reducer.Builder[counterState]) {
			b.AddCase(actionIncrement, func(s counterState, a action.Action) counterState {
				s.Value += step(a)
				return s
			})
			b.AddCase(actionDecrement, func(s counterState, a action.Action) counterState {
				s.Value -= step(a)
				return s
			})
		},
	})
}

type todo struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type todosState struct {
	Items     []todo `json:"items"`
	NextID    int    `json:"next_id"`
	Pending   int    `json:"pending"`
	LastError string `json:"last_error"`
}

// addTodo validates the text before the fulfilled action stores it.
var addTodo = thunk.CreateAsync("todos/add", func(_ context.Context, _ action.Dispatcher, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyTodo
	}
	return text, nil
})

func createTodos(st *store.Store) (*store.Slice[todosState], error) {
	return store.CreateSlice(st, store.SliceConfig[todosState]{
		Name:         "todos",
		InitialState: todosState{NextID: 1},
		Reducers: func(b *reducer.Builder[todosState]) {
			b.AddCase(actionToggleTodo, func(s todosState, a action.Action) todosState {
				id, _ := action.PayloadAs[int](a)
				for i := range s.Items {
					if s.Items[i].ID == id {
						s.Items[i].Done = !s.Items[i].Done
					}
				}
				return s
			})
		},
		ExtraReducers: func(b *reducer.Builder[todosState]) {
			b.AddAsync(addTodo.Types(), reducer.AsyncCases[todosState]{
				Pending: func(s todosState, _ action.Action) todosState {
					s.Pending++
					return s
				},
				Fulfilled: func(s todosState, a action.Action) todosState {
					text, _ := action.PayloadAs[string](a)
					s.Pending--
					s.Items = append(s.Items, todo{ID: s.NextID, Text: text})
					s.NextID++
					s.LastError = ""
					return s
				},
				Rejected: func(s todosState, a action.Action) todosState {
					s.Pending--
					s.LastError = a.Err.Error()
					return s
				},
			})
		},
		Duplicate: func(s todosState) todosState {
			s.Items = append([]todo(nil), s.Items...)
			return s
		},
	})
}

// toggleTodo checks that the todo exists before toggling it.
func toggleTodo(id int) action.Thunk {
	return func(ctx context.Context, d action.Dispatcher) (any, error) {
		todos, err := store.Select[todosState](d, "todos")
		if err != nil {
			return nil, err
		}
		for _, t := range todos.Items {
			if t.ID == id {
				return d.Dispatch(ctx, action.New(actionToggleTodo, id).To("todos"))
			}
		}
		return nil, fmt.Errorf("no todo #%d", id)
	}
}

type settingsState struct {
	Config  config.Config
	Reloads int
}

func createSettings(st *store.Store, initial config.Config) (*store.Slice[settingsState], error) {
	return store.CreateSlice(st, store.SliceConfig[settingsState]{
		Name:         "settings",
		InitialState: settingsState{Config: initial},
		Reducers: func(b *reducer.Builder[settingsState]) {
			b.AddCase(actionConfigReloaded, func(s settingsState, a action.Action) settingsState {
				if cfg, ok := action.PayloadAs[config.Config](a); ok {
					s.Config = cfg
					s.Reloads++
				}
				return s
			})
		},
	})
}
