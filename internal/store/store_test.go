package store_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/reducer"
	"github.com/dshills/statekit/internal/store"
)

type counter struct {
	Count int
}

func newCounter(t *testing.T, st *store.Store, name string) *store.Slice[counter] {
	t.Helper()
	sl, err := store.CreateSlice(st, store.SliceConfig[counter]{
		Name:         name,
		InitialState: counter{},
		Reducers: func(b *reducer.Builder[counter]) {
			b.AddCase("increment", func(s counter, _ action.Action) counter {
				s.Count++
				return s
			})
		},
	})
	if err != nil {
		t.Fatalf("CreateSlice(%q): %v", name, err)
	}
	return sl
}

func bufferedStore(t *testing.T) (*store.Store, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	return store.New(store.DefaultOptions().WithLogger(logger)), &buf
}

func mustDispatch(t *testing.T, d action.Dispatcher, v action.Dispatchable) any {
	t.Helper()
	result, err := d.Dispatch(context.Background(), v)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	return result
}

func TestCounterScenario(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	for i := 0; i < 3; i++ {
		mustDispatch(t, st, action.New("increment", nil))
	}
	if got := c.State().Count; got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}

	mustDispatch(t, st, action.New("decrement", nil))
	if got := c.State().Count; got != 3 {
		t.Errorf("unregistered action changed count to %d", got)
	}
}

func TestDispatchReturnsAction(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	a := action.New("increment", nil)
	result := mustDispatch(t, st, a)

	got, ok := result.(action.Action)
	if !ok || got.ID != a.ID {
		t.Errorf("expected dispatched action as result, got %v", result)
	}
}

func TestGetStateSliceNotFound(t *testing.T) {
	st := store.NewWithDefaults()

	_, err := st.GetState("missing")
	if !errors.Is(err, store.ErrSliceNotFound) {
		t.Errorf("expected ErrSliceNotFound, got %v", err)
	}

	var nf *store.SliceNotFoundError
	if !errors.As(err, &nf) || nf.Name != "missing" {
		t.Errorf("expected SliceNotFoundError for missing, got %v", err)
	}
}

func TestGetStateTypeMismatch(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	_, err := store.GetState[string](st, "counter")
	if !errors.Is(err, store.ErrStateType) {
		t.Errorf("expected ErrStateType, got %v", err)
	}
}

func TestDispatchToMissingSlice(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	_, err := st.Dispatch(context.Background(), action.New("increment", nil).To("ghost"))
	if !errors.Is(err, store.ErrSliceNotFound) {
		t.Errorf("expected ErrSliceNotFound, got %v", err)
	}
}

func TestDuplicateSlice(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	_, err := store.CreateSlice(st, store.SliceConfig[counter]{Name: "counter"})
	if !errors.Is(err, store.ErrDuplicateSlice) {
		t.Errorf("expected ErrDuplicateSlice, got %v", err)
	}
}

func TestEmptySliceName(t *testing.T) {
	st := store.NewWithDefaults()

	_, err := store.CreateSlice(st, store.SliceConfig[counter]{})
	if !errors.Is(err, store.ErrInvalidSlice) {
		t.Errorf("expected ErrInvalidSlice, got %v", err)
	}
}

func TestRemoveThenRecreate(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")
	mustDispatch(t, st, action.New("increment", nil))

	c.Remove()
	st.RemoveSlice("counter")

	if st.HasSlice("counter") {
		t.Fatal("expected slice to be removed")
	}

	recreated, err := store.CreateSlice(st, store.SliceConfig[counter]{
		Name:         "counter",
		InitialState: counter{Count: 10},
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if got := recreated.State().Count; got != 10 {
		t.Errorf("expected new initial state 10, got %d", got)
	}
}

func TestRemoveSliceDropsListeners(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	calls := 0
	if _, err := c.Subscribe(func(counter) { calls++ }); err != nil {
		t.Fatal(err)
	}

	c.Remove()
	newCounter(t, st, "counter")
	mustDispatch(t, st, action.New("increment", nil))

	if calls != 0 {
		t.Errorf("listener of removed slice was called %d times", calls)
	}
}

func TestUntouchedSliceKeepsIdentity(t *testing.T) {
	st := store.NewWithDefaults()

	type box struct{ N int }
	initial := &box{}
	duplicates := 0
	b, err := store.CreateSlice(st, store.SliceConfig[*box]{
		Name:         "box",
		InitialState: initial,
		Reducers: func(rb *reducer.Builder[*box]) {
			rb.AddCase("box/bump", func(s *box, _ action.Action) *box {
				s.N++
				return s
			})
		},
		Duplicate: func(s *box) *box {
			duplicates++
			c := *s
			return &c
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	newCounter(t, st, "counter")

	mustDispatch(t, st, action.New("increment", nil))
	if b.State() != initial {
		t.Error("slice not matched by the action lost referential identity")
	}
	if duplicates != 0 {
		t.Errorf("duplicator ran %d times for an unmatched action", duplicates)
	}

	mustDispatch(t, st, action.New("box/bump", nil))
	if b.State() == initial {
		t.Error("expected duplicated value after matched action")
	}
	if initial.N != 0 {
		t.Error("case mutated the original value despite the duplicator")
	}
	if b.State().N != 1 || duplicates != 1 {
		t.Errorf("unexpected state N=%d duplicates=%d", b.State().N, duplicates)
	}
}

func TestTargetedDispatch(t *testing.T) {
	st := store.NewWithDefaults()
	a := newCounter(t, st, "a")
	b := newCounter(t, st, "b")

	var bCalls int
	if _, err := b.Subscribe(func(counter) { bCalls++ }); err != nil {
		t.Fatal(err)
	}

	mustDispatch(t, st, a.Action("increment", nil))

	if a.State().Count != 1 {
		t.Errorf("expected a=1, got %d", a.State().Count)
	}
	if b.State().Count != 0 {
		t.Errorf("expected b untouched, got %d", b.State().Count)
	}
	if bCalls != 0 {
		t.Errorf("listener of untargeted slice called %d times", bCalls)
	}
}

func TestExtraReducersReactToOtherSlices(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	type audit struct{ Seen []string }
	log, err := store.CreateSlice(st, store.SliceConfig[audit]{
		Name: "audit",
		Reducers: func(b *reducer.Builder[audit]) {
			b.AddCase("audit/clear", func(audit, action.Action) audit { return audit{} })
		},
		ExtraReducers: func(b *reducer.Builder[audit]) {
			b.AddCase("increment", func(s audit, a action.Action) audit {
				s.Seen = append(append([]string(nil), s.Seen...), a.Type)
				return s
			})
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	mustDispatch(t, st, action.New("increment", nil))
	mustDispatch(t, st, action.New("increment", nil))

	if got := len(log.State().Seen); got != 2 {
		t.Errorf("expected 2 audit entries, got %d", got)
	}
}

func TestOwnAndExtraCasesBothRun(t *testing.T) {
	st := store.NewWithDefaults()

	var trail []string
	_, err := store.CreateSlice(st, store.SliceConfig[int]{
		Name: "n",
		Reducers: func(b *reducer.Builder[int]) {
			b.AddCase("x", func(s int, _ action.Action) int {
				trail = append(trail, "own")
				return s + 1
			})
		},
		ExtraReducers: func(b *reducer.Builder[int]) {
			b.AddCase("x", func(s int, _ action.Action) int {
				trail = append(trail, "extra")
				return s * 10
			})
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	mustDispatch(t, st, action.New("x", nil))

	if n, _ := store.GetState[int](st, "n"); n != 10 {
		t.Errorf("expected (0+1)*10 = 10, got %d", n)
	}
	if strings.Join(trail, ",") != "own,extra" {
		t.Errorf("expected own then extra, got %v", trail)
	}
}

func TestReducerPanicIsolated(t *testing.T) {
	st, logs := bufferedStore(t)

	_, err := store.CreateSlice(st, store.SliceConfig[counter]{
		Name: "broken",
		Reducers: func(b *reducer.Builder[counter]) {
			b.AddCase("increment", func(counter, action.Action) counter { panic("boom") })
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	healthy := newCounter(t, st, "healthy")

	mustDispatch(t, st, action.New("increment", nil))

	if healthy.State().Count != 1 {
		t.Errorf("healthy slice did not update: %d", healthy.State().Count)
	}
	if st.Stats().ReducerPanics != 1 {
		t.Errorf("expected 1 reducer panic, got %d", st.Stats().ReducerPanics)
	}
	if !strings.Contains(logs.String(), `slice "broken"`) {
		t.Errorf("expected panic to be logged with slice name, got %q", logs.String())
	}
}

func TestListenerPanicIsolated(t *testing.T) {
	st, _ := bufferedStore(t)
	c := newCounter(t, st, "counter")

	if _, err := c.Subscribe(func(counter) { panic("listener") }); err != nil {
		t.Fatal(err)
	}
	got := -1
	if _, err := c.Subscribe(func(s counter) { got = s.Count }); err != nil {
		t.Fatal(err)
	}
	globalCalled := false
	st.Subscribe(func(store.State) { globalCalled = true })

	mustDispatch(t, st, action.New("increment", nil))

	if got != 1 {
		t.Errorf("second listener saw %d, want 1", got)
	}
	if !globalCalled {
		t.Error("global listener skipped after a panicking slice listener")
	}
	if st.Stats().ListenerPanics != 1 {
		t.Errorf("expected 1 listener panic, got %d", st.Stats().ListenerPanics)
	}
}

func TestNotificationOrder(t *testing.T) {
	st := store.NewWithDefaults()
	a := newCounter(t, st, "a")
	b := newCounter(t, st, "b")

	var order []string
	st.Subscribe(func(store.State) { order = append(order, "global1") })
	b.Subscribe(func(counter) { order = append(order, "b1") })
	a.Subscribe(func(counter) { order = append(order, "a1") })
	a.Subscribe(func(counter) { order = append(order, "a2") })
	st.Subscribe(func(store.State) { order = append(order, "global2") })
	st.OnAction(func(action.Action) { order = append(order, "hook") })

	mustDispatch(t, st, action.New("increment", nil))

	want := "hook,a1,a2,b1,global1,global2"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("notification order = %s, want %s", got, want)
	}
}

// Listeners are notified on every cycle that routes to their slice, even
// when the slice value did not change.
func TestBroadNotificationPolicy(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	calls := 0
	c.Subscribe(func(counter) { calls++ })

	mustDispatch(t, st, action.New("unrelated", nil))

	if calls != 1 {
		t.Errorf("expected listener to run for an unchanged slice, ran %d times", calls)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	calls := 0
	fn := func(counter) { calls++ }
	unsub1, _ := c.Subscribe(fn)
	c.Subscribe(fn)

	mustDispatch(t, st, action.New("increment", nil))
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}

	unsub1()
	unsub1()
	mustDispatch(t, st, action.New("increment", nil))
	if calls != 3 {
		t.Errorf("expected 1 more invocation after unsubscribe, total %d", calls)
	}
}

func TestSubscribeMissingSlice(t *testing.T) {
	st := store.NewWithDefaults()

	_, err := store.SubscribeSlice(st, "ghost", func(counter) {})
	if !errors.Is(err, store.ErrSliceNotFound) {
		t.Errorf("expected ErrSliceNotFound, got %v", err)
	}
}

func TestGlobalListenerSeesState(t *testing.T) {
	st := store.NewWithDefaults()
	newCounter(t, st, "counter")

	var seen counter
	unsub := st.Subscribe(func(s store.State) {
		seen, _ = store.From[counter](s, "counter")
	})

	mustDispatch(t, st, action.New("increment", nil))
	if seen.Count != 1 {
		t.Errorf("expected snapshot count 1, got %d", seen.Count)
	}

	unsub()
	mustDispatch(t, st, action.New("increment", nil))
	if seen.Count != 1 {
		t.Error("unsubscribed global listener was called")
	}
}

func TestUnsubscribeDuringNotification(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	var unsubSecond func()
	secondCalls := 0
	c.Subscribe(func(counter) { unsubSecond() })
	unsubSecond, _ = c.Subscribe(func(counter) { secondCalls++ })

	mustDispatch(t, st, action.New("increment", nil))

	if secondCalls != 0 {
		t.Errorf("listener cancelled earlier in the cycle still ran %d times", secondCalls)
	}
}

func TestSliceNamesInCreationOrder(t *testing.T) {
	st := store.NewWithDefaults()
	for _, name := range []string{"z", "a", "m"} {
		newCounter(t, st, name)
	}
	st.RemoveSlice("a")

	if got := strings.Join(st.SliceNames(), ","); got != "z,m" {
		t.Errorf("expected z,m, got %s", got)
	}
	if got := strings.Join(st.State().Names(), ","); got != "z,m" {
		t.Errorf("expected state names z,m, got %s", got)
	}
}

func TestInvalidAction(t *testing.T) {
	st := store.NewWithDefaults()

	if _, err := st.Dispatch(context.Background(), action.Action{}); !errors.Is(err, store.ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction for empty type, got %v", err)
	}
	if _, err := st.Dispatch(context.Background(), nil); !errors.Is(err, store.ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction for nil, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := st.Dispatch(ctx, action.New("increment", nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if c.State().Count != 0 {
		t.Error("cancelled dispatch changed state")
	}
}

func TestDispose(t *testing.T) {
	st := store.NewWithDefaults()
	c := newCounter(t, st, "counter")

	calls := 0
	st.OnDispose(func() {
		calls++
		// Cleanup dispatches are still accepted from the dispose event.
		if _, err := st.Dispatch(context.Background(), action.New("increment", nil)); err != nil {
			t.Errorf("cleanup dispatch failed: %v", err)
		}
	})

	st.Dispose()
	st.Dispose()

	if calls != 1 {
		t.Errorf("expected dispose handler once, got %d", calls)
	}
	if c.State().Count != 1 {
		t.Errorf("expected cleanup dispatch to apply, got %d", c.State().Count)
	}
	if !st.IsDisposed() {
		t.Error("expected store to be disposed")
	}
	if _, err := st.Dispatch(context.Background(), action.New("increment", nil)); !errors.Is(err, store.ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestIndependentStores(t *testing.T) {
	s1 := store.NewWithDefaults()
	s2 := store.NewWithDefaults()
	c1 := newCounter(t, s1, "counter")
	c2 := newCounter(t, s2, "counter")

	mustDispatch(t, s1, action.New("increment", nil))

	if c1.State().Count != 1 || c2.State().Count != 0 {
		t.Errorf("stores share state: %d %d", c1.State().Count, c2.State().Count)
	}
	if s1.ID() == s2.ID() {
		t.Error("expected distinct store IDs")
	}
}

func TestPanicRecoveryDisabled(t *testing.T) {
	st := store.New(store.DefaultOptions().WithPanicRecovery(false))
	_, err := store.CreateSlice(st, store.SliceConfig[counter]{
		Name: "broken",
		Reducers: func(b *reducer.Builder[counter]) {
			b.AddCase("boom", func(counter, action.Action) counter { panic("boom") })
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := newCounter(t, st, "counter")

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		st.Dispatch(context.Background(), action.New("boom", nil))
	}()

	// The store is usable again after the panic unwound.
	mustDispatch(t, st, action.New("increment", nil))
	if c.State().Count != 1 {
		t.Errorf("expected count 1, got %d", c.State().Count)
	}
}
