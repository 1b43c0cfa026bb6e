package store

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// subscription is one listener registration. Registering the same function
// twice yields two independent subscriptions.
type subscription[T any] struct {
	id        string
	fn        func(T)
	cancelled atomic.Bool
}

func newSubscription[T any](fn func(T)) *subscription[T] {
	return &subscription[T]{id: uuid.NewString(), fn: fn}
}

func (s *subscription[T]) active() bool {
	return !s.cancelled.Load()
}

func (s *subscription[T]) cancel() {
	s.cancelled.Store(true)
}

// removeSubscription returns subs without target, leaving subs untouched.
func removeSubscription[T any](subs []*subscription[T], target *subscription[T]) []*subscription[T] {
	out := make([]*subscription[T], 0, len(subs))
	for _, sub := range subs {
		if sub != target {
			out = append(out, sub)
		}
	}
	return out
}
