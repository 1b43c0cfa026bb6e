package reducer

import (
	"strings"

	"github.com/dshills/statekit/internal/action"
)

// Matcher is a predicate over actions.
type Matcher func(a action.Action) bool

// OfType matches actions whose type is one of types.
func OfType(types ...string) Matcher {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(a action.Action) bool {
		return set[a.Type]
	}
}

// HasPrefix matches actions whose type starts with prefix.
func HasPrefix(prefix string) Matcher {
	return func(a action.Action) bool {
		return strings.HasPrefix(a.Type, prefix)
	}
}

// AnyOf matches when at least one of ms matches.
func AnyOf(ms ...Matcher) Matcher {
	return func(a action.Action) bool {
		for _, m := range ms {
			if m(a) {
				return true
			}
		}
		return false
	}
}

// AllOf matches when every one of ms matches.
func AllOf(ms ...Matcher) Matcher {
	return func(a action.Action) bool {
		for _, m := range ms {
			if !m(a) {
				return false
			}
		}
		return true
	}
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return func(a action.Action) bool {
		return !m(a)
	}
}

// HasError matches actions carrying an error.
func HasError() Matcher {
	return func(a action.Action) bool {
		return a.Err != nil
	}
}

// Pending matches the pending action of any of ts.
func Pending(ts ...action.AsyncTypes) Matcher {
	return lifecycle(ts, action.AsyncTypes.Pending)
}

// Fulfilled matches the fulfilled action of any of ts.
func Fulfilled(ts ...action.AsyncTypes) Matcher {
	return lifecycle(ts, action.AsyncTypes.Fulfilled)
}

// Rejected matches the rejected action of any of ts.
func Rejected(ts ...action.AsyncTypes) Matcher {
	return lifecycle(ts, action.AsyncTypes.Rejected)
}

// Settled matches the fulfilled or rejected action of any of ts.
func Settled(ts ...action.AsyncTypes) Matcher {
	return AnyOf(Fulfilled(ts...), Rejected(ts...))
}

func lifecycle(ts []action.AsyncTypes, stage func(action.AsyncTypes) string) Matcher {
	types := make([]string, len(ts))
	for i, t := range ts {
		types[i] = stage(t)
	}
	return OfType(types...)
}
