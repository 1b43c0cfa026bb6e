// Package queue defers dispatches that arrive while another dispatch is in
// progress and replays them once the running cycle has finished.
//
// Replays can trigger further replays. Nested draining is bounded by a
// maximum depth; when it is reached the pending batch is dropped and a
// single diagnostic naming the source action is logged.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
)

// DefaultMaxDepth is the default nesting limit for Drain.
const DefaultMaxDepth = 10

// Queue is an ordered list of pending replay callbacks.
type Queue struct {
	mu       sync.Mutex
	pending  []func()
	depth    int
	maxDepth int
	logger   *logging.Logger

	enqueued  atomic.Uint64
	replayed  atomic.Uint64
	dropped   atomic.Uint64
	overflows atomic.Uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxDepth sets the nesting limit. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for overflow diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		maxDepth: DefaultMaxDepth,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a replay callback.
func (q *Queue) Enqueue(replay func()) {
	if replay == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, replay)
	q.mu.Unlock()
	q.enqueued.Add(1)
}

// Drain runs the pending callbacks in FIFO order.
// Callbacks enqueued while draining are handled by the nested Drain their
// own dispatch performs. source identifies the action whose cycle triggered
// this drain and is named in the overflow diagnostic.
func (q *Queue) Drain(source action.Action) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}

	q.depth++
	if q.depth >= q.maxDepth {
		n := len(q.pending)
		q.pending = nil
		q.depth--
		q.mu.Unlock()

		q.overflows.Add(1)
		q.dropped.Add(uint64(n))
		q.logger.WithField("action", source.Type).Error(
			"dispatch queue reached depth %d while handling %q, likely an infinite dispatch loop; dropped %d queued dispatches",
			q.maxDepth, source.Type, n)
		return
	}

	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.depth--
		q.mu.Unlock()
	}()

	for _, replay := range batch {
		q.replayed.Add(1)
		replay()
	}
}

// Len returns the number of pending callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Depth returns the current drain nesting depth.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// MaxDepth returns the nesting limit.
func (q *Queue) MaxDepth() int {
	return q.maxDepth
}

// Stats contains queue counters.
type Stats struct {
	// Enqueued is the number of callbacks ever enqueued.
	Enqueued uint64
	// Replayed is the number of callbacks run.
	Replayed uint64
	// Dropped is the number of callbacks discarded on overflow.
	Dropped uint64
	// Overflows is the number of times the depth limit was hit.
	Overflows uint64
	// Pending is the current queue length.
	Pending int
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Replayed:  q.replayed.Load(),
		Dropped:   q.dropped.Load(),
		Overflows: q.overflows.Load(),
		Pending:   q.Len(),
	}
}
