// Package reducer builds slice reducers from case registrations.
//
// A Builder accumulates (Matcher, Case) pairs. Build compiles them into a
// Reducer that, at dispatch time, tries every registration in order and runs
// all of the matching cases, each one receiving the state returned by the
// previous one:
//
//	r := reducer.NewBuilder[Counter]().
//	    AddCase("increment", func(s Counter, _ action.Action) Counter {
//	        s.Count++
//	        return s
//	    }).
//	    AddMatcher(reducer.HasPrefix("reset/"), func(Counter, action.Action) Counter {
//	        return Counter{}
//	    }).
//	    Build()
//
// A default case runs only when nothing else in the same builder matched.
package reducer
