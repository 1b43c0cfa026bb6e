package store

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/pipeline"
	"github.com/dshills/statekit/internal/store/queue"
)

// reduceFunc is a type-erased slice reducer. It reports whether any case
// matched; when none did the input value is returned as is.
type reduceFunc func(state any, a action.Action) (any, bool)

// sliceEntry is one compartment of the state tree.
type sliceEntry struct {
	name      string
	value     any
	reducer   reduceFunc
	listeners []*subscription[any]
}

// Store holds the state tree and serializes every mutation through a single
// dispatch entry point.
type Store struct {
	id     string
	opts   Options
	logger *logging.Logger
	queue  *queue.Queue

	mu          sync.RWMutex
	order       []string
	slices      map[string]*sliceEntry
	globals     []*subscription[State]
	actionHooks []*subscription[action.Action]
	disposeFns  []*subscription[struct{}]
	stack       pipeline.Stack
	dispatching bool
	disposing   bool
	disposed    bool

	cycles         atomic.Uint64
	deferred       atomic.Uint64
	reducerPanics  atomic.Uint64
	listenerPanics atomic.Uint64
}

var _ action.Dispatcher = (*Store)(nil)

// New creates a store with the given options.
// Unless DisableThunk is set the pipeline starts with the thunk middleware.
func New(opts Options) *Store {
	if opts.MaxDispatchDepth <= 0 {
		opts.MaxDispatchDepth = queue.DefaultMaxDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	id := uuid.NewString()
	logger = logger.WithComponent("store").WithField("store", id[:8])

	s := &Store{
		id:     id,
		opts:   opts,
		logger: logger,
		queue: queue.New(
			queue.WithMaxDepth(opts.MaxDispatchDepth),
			queue.WithLogger(logger.WithComponent("queue")),
		),
		slices: make(map[string]*sliceEntry),
	}

	if !opts.DisableThunk {
		s.stack = pipeline.NewStack(pipeline.Thunk())
	}

	return s
}

// NewWithDefaults creates a store with default options.
func NewWithDefaults() *Store {
	return New(DefaultOptions())
}

// ID returns the store's unique identifier.
func (s *Store) ID() string {
	return s.id
}

// Logger returns the store's logger.
func (s *Store) Logger() *logging.Logger {
	return s.logger
}

// ApplyMiddleware pushes middleware onto the default pipeline.
// Later middleware wrap earlier ones and take effect for subsequent dispatches.
func (s *Store) ApplyMiddleware(mws ...pipeline.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = s.stack.Push(mws...)
}

// API returns the default dispatch entry point over the current pipeline.
func (s *Store) API() *API {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &API{store: s, stack: s.stack}
}

// CreateAPI returns an entry point that runs mw outside the current
// pipeline. The store's default pipeline is not changed.
func (s *Store) CreateAPI(mw pipeline.Middleware) *API {
	return s.API().With(mw)
}

// Dispatch sends an action or thunk through the default pipeline.
func (s *Store) Dispatch(ctx context.Context, d action.Dispatchable) (any, error) {
	return s.API().Dispatch(ctx, d)
}

// GetState returns the current value of the named slice.
func (s *Store) GetState(name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.slices[name]
	if !ok {
		return nil, &SliceNotFoundError{Name: name}
	}
	return e.value, nil
}

// State returns a snapshot of the whole state tree.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SliceNames returns the slice names in creation order.
func (s *Store) SliceNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// HasSlice reports whether the named slice exists.
func (s *Store) HasSlice(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slices[name]
	return ok
}

// RemoveSlice removes the named slice, its reducer and its listeners.
// Removing a missing slice is a no-op.
func (s *Store) RemoveSlice(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.slices[name]
	if !ok {
		return
	}
	for _, sub := range e.listeners {
		sub.cancel()
	}
	delete(s.slices, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Subscribe registers fn to receive the whole state after every dispatch
// cycle, after the per-slice listeners.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	sub := newSubscription(fn)

	s.mu.Lock()
	s.globals = append(s.globals, sub)
	s.mu.Unlock()

	return func() {
		sub.cancel()
		s.mu.Lock()
		s.globals = removeSubscription(s.globals, sub)
		s.mu.Unlock()
	}
}

// OnAction registers fn to observe every action that reaches the reducers.
// It runs after reducers and before listeners. Intended for prototyping and
// diagnostics; production code should use middleware.
func (s *Store) OnAction(fn func(action.Action)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	sub := newSubscription(fn)

	s.mu.Lock()
	s.actionHooks = append(s.actionHooks, sub)
	s.mu.Unlock()

	return func() {
		sub.cancel()
		s.mu.Lock()
		s.actionHooks = removeSubscription(s.actionHooks, sub)
		s.mu.Unlock()
	}
}

// OnDispose registers fn to run when the store is disposed.
func (s *Store) OnDispose(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	sub := newSubscription(func(struct{}) { fn() })

	s.mu.Lock()
	s.disposeFns = append(s.disposeFns, sub)
	s.mu.Unlock()

	return func() {
		sub.cancel()
		s.mu.Lock()
		s.disposeFns = removeSubscription(s.disposeFns, sub)
		s.mu.Unlock()
	}
}

// Dispose fires the pre-dispose event once and then rejects new dispatches.
// Dispose handlers may still dispatch cleanup actions. In-flight thunks are
// not cancelled. Calling Dispose again is a no-op.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposing {
		s.mu.Unlock()
		return
	}
	s.disposing = true
	fns := s.disposeFns
	s.disposeFns = nil
	s.mu.Unlock()

	for _, sub := range fns {
		if !sub.active() {
			continue
		}
		s.safeCall("dispose", sub.id, func() { sub.fn(struct{}{}) })
	}

	s.mu.Lock()
	s.disposed = true
	s.globals = nil
	s.actionHooks = nil
	s.mu.Unlock()

	s.logger.Debug("store disposed")
}

// IsDisposed reports whether Dispose has completed.
func (s *Store) IsDisposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// terminal is the innermost pipeline handler.
func (s *Store) terminal(ctx context.Context, d action.Dispatchable) (any, error) {
	a, ok := d.(action.Action)
	if !ok {
		return nil, ErrUnhandledThunk
	}
	if a.Type == "" {
		return nil, ErrInvalidAction
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.dispatchToSlices(a, a.Target); err != nil {
		return nil, err
	}
	return a, nil
}

// target is a slice selected for one dispatch cycle.
type target struct {
	entry *sliceEntry
	value any
}

// dispatchToSlices is the single point where state is written. A call made
// while another cycle is running is queued and replayed after that cycle.
func (s *Store) dispatchToSlices(a action.Action, names []string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}

	targets, err := s.resolveLocked(names)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if s.dispatching {
		// Enqueued under the lock so the running cycle's drain sees it.
		s.queue.Enqueue(func() {
			if err := s.dispatchToSlices(a, names); err != nil {
				s.logger.WithField("action", a.Type).Error("queued dispatch failed: %v", err)
			}
		})
		s.mu.Unlock()
		s.deferred.Add(1)
		return nil
	}
	s.dispatching = true
	s.mu.Unlock()

	s.runCycle(a, targets)
	s.queue.Drain(a)
	return nil
}

// runCycle applies reducers to targets and notifies listeners. The caller
// has set the dispatching flag; runCycle clears it on return.
func (s *Store) runCycle(a action.Action, targets []target) {
	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	// Reducers run without the lock so they cannot deadlock on reads.
	results := make([]any, len(targets))
	applied := make([]bool, len(targets))
	for i, t := range targets {
		results[i], applied[i] = s.reduce(t, a)
	}

	s.mu.Lock()
	for i, t := range targets {
		if applied[i] && s.slices[t.entry.name] == t.entry {
			t.entry.value = results[i]
		}
	}

	type notify struct {
		value     any
		listeners []*subscription[any]
	}
	perSlice := make([]notify, 0, len(targets))
	for _, t := range targets {
		if s.slices[t.entry.name] != t.entry || len(t.entry.listeners) == 0 {
			continue
		}
		perSlice = append(perSlice, notify{
			value:     t.entry.value,
			listeners: append([]*subscription[any](nil), t.entry.listeners...),
		})
	}
	hooks := append([]*subscription[action.Action](nil), s.actionHooks...)
	globals := append([]*subscription[State](nil), s.globals...)
	var snapshot State
	if len(globals) > 0 {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	s.cycles.Add(1)

	for _, h := range hooks {
		if h.active() {
			s.safeCall(a.Type, h.id, func() { h.fn(a) })
		}
	}
	for _, n := range perSlice {
		for _, l := range n.listeners {
			if l.active() {
				s.safeCall(a.Type, l.id, func() { l.fn(n.value) })
			}
		}
	}
	for _, g := range globals {
		if g.active() {
			s.safeCall(a.Type, g.id, func() { g.fn(snapshot) })
		}
	}
}

// resolveLocked maps slice names to targets. Empty names selects every
// slice in creation order.
func (s *Store) resolveLocked(names []string) ([]target, error) {
	if len(names) == 0 {
		targets := make([]target, 0, len(s.order))
		for _, name := range s.order {
			e := s.slices[name]
			if e.reducer == nil {
				return nil, &ReducerNotFoundError{Name: name}
			}
			targets = append(targets, target{entry: e, value: e.value})
		}
		return targets, nil
	}

	targets := make([]target, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		e, ok := s.slices[name]
		if !ok {
			return nil, &SliceNotFoundError{Name: name}
		}
		if e.reducer == nil {
			return nil, &ReducerNotFoundError{Name: name}
		}
		targets = append(targets, target{entry: e, value: e.value})
	}
	return targets, nil
}

// reduce applies one slice reducer. A recovered panic leaves the slice at
// its previous value and reports false.
func (s *Store) reduce(t target, a action.Action) (next any, ok bool) {
	if !s.opts.RecoverFromPanic {
		next, _ = t.entry.reducer(t.value, a)
		return next, true
	}

	defer func() {
		if r := recover(); r != nil {
			s.reducerPanics.Add(1)
			perr := &PanicError{Slice: t.entry.name, Action: a.Type, Value: r, Stack: string(debug.Stack())}
			s.logger.WithFields(map[string]any{"slice": t.entry.name, "action": a.Type}).
				Error("%v\n%s", perr, perr.Stack)
			next, ok = t.value, false
		}
	}()

	next, _ = t.entry.reducer(t.value, a)
	return next, true
}

// safeCall runs a listener or hook, recovering and logging a panic.
func (s *Store) safeCall(actionType, subID string, fn func()) {
	if !s.opts.RecoverFromPanic {
		fn()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.listenerPanics.Add(1)
			s.logger.WithFields(map[string]any{"action": actionType, "subscription": subID}).
				Error("listener panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

func (s *Store) snapshotLocked() State {
	values := make(map[string]any, len(s.slices))
	for name, e := range s.slices {
		values[name] = e.value
	}
	return State{values: values, order: append([]string(nil), s.order...)}
}

// Stats contains store counters.
type Stats struct {
	// Dispatches is the number of completed dispatch cycles.
	Dispatches uint64
	// Deferred is the number of dispatches queued during another cycle.
	Deferred uint64
	// ReducerPanics is the number of recovered reducer panics.
	ReducerPanics uint64
	// ListenerPanics is the number of recovered listener and hook panics.
	ListenerPanics uint64
	// Overflows is the number of times the dispatch queue depth bound was hit.
	Overflows uint64
	// Slices is the number of registered slices.
	Slices int
	// Pending is the number of queued dispatches waiting to run.
	Pending int
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	qs := s.queue.Stats()

	s.mu.RLock()
	slices := len(s.slices)
	s.mu.RUnlock()

	return Stats{
		Dispatches:     s.cycles.Load(),
		Deferred:       s.deferred.Load(),
		ReducerPanics:  s.reducerPanics.Load(),
		ListenerPanics: s.listenerPanics.Load(),
		Overflows:      qs.Overflows,
		Slices:         slices,
		Pending:        qs.Pending,
	}
}
