// Package store provides an in-process action-dispatch state container.
//
// A Store holds a tree of named slices. Each slice has a value and a
// reducer compiled from case registrations. All mutation goes through
// Dispatch, which runs the value through an ordered middleware pipeline and
// finally through the reducers of the slices the action is routed to.
//
// # Dispatch cycle
//
// When an action reaches the terminal handler:
//
//  1. If another cycle is in progress the action is queued and Dispatch
//     returns. The queued action runs once the current cycle finishes.
//  2. Each target slice's reducer runs. A panicking reducer is logged and
//     leaves its slice unchanged; the other slices still update.
//  3. OnAction hooks run, then the listeners of every target slice, then
//     the whole-tree listeners. Listeners are notified on every cycle that
//     routes to their slice, whether or not its value changed.
//  4. Queued dispatches are drained in FIFO order. Nested draining is
//     bounded; a runaway cascade is dropped with one logged diagnostic.
//
// # Typed access
//
// Slices are created and read through generic helpers so application code
// has one type-checked call site per slice:
//
//	counter, err := store.CreateSlice(st, store.SliceConfig[Counter]{
//	    Name:         "counter",
//	    InitialState: Counter{},
//	    Reducers: func(b *reducer.Builder[Counter]) {
//	        b.AddCase("increment", func(s Counter, _ action.Action) Counter {
//	            s.Count++
//	            return s
//	        })
//	    },
//	})
//
//	_, err = st.Dispatch(ctx, action.New("increment", nil))
//	fmt.Println(counter.State().Count)
//
// # Middleware
//
// The default pipeline holds the thunk middleware. ApplyMiddleware pushes
// more middleware outside it. CreateAPI returns an entry point with one
// extra outermost middleware without changing the default pipeline.
//
// The store is meant to be driven by one goroutine. Reads are safe from any
// goroutine; a dispatch from another goroutine during a running cycle is
// queued behind it.
package store
