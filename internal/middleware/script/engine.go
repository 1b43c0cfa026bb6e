package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/pipeline"
)

// Defaults for an Engine.
const (
	DefaultTimeout = time.Second
	DefaultHandler = "on_action"
)

// Engine owns one sandboxed Lua state.
//
// gopher-lua states are not goroutine-safe; every call into the state is
// serialized by the engine's mutex.
type Engine struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	handler string
	logger  *logging.Logger
	closed  bool

	// api is the dispatcher of the call in progress, read by statekit.state.
	api action.Dispatcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each script call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithHandler sets the name of the global hook function.
func WithHandler(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.handler = name
		}
	}
}

// WithLogger sets the logger that statekit.log writes to.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine with a fresh sandboxed state.
func New(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
		handler: DefaultHandler,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("script")

	e.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.L)
	e.installModule()
	return e
}

// openSafeLibraries opens the libraries with no filesystem, process or
// module loading access and removes the chunk loaders from the base library.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (e *Engine) installModule() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"log": func(L *lua.LState) int {
			e.logger.Info("%s", L.CheckString(1))
			return 0
		},
		"state": func(L *lua.LState) int {
			name := L.CheckString(1)
			if e.api == nil {
				L.Push(lua.LNil)
				return 1
			}
			v, err := e.api.GetState(name)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(toLua(L, v))
			return 1
		},
	})
	e.L.SetGlobal("statekit", mod)
}

// LoadFile runs the script at path. Loading again replaces the definitions
// the script makes.
func (e *Engine) LoadFile(path string) error {
	return e.do(context.Background(), func() error {
		return e.L.DoFile(path)
	})
}

// LoadString runs code.
func (e *Engine) LoadString(code string) error {
	return e.do(context.Background(), func() error {
		return e.L.DoString(code)
	})
}

// HasHandler reports whether the hook function is defined.
func (e *Engine) HasHandler() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	return e.L.GetGlobal(e.handler).Type() == lua.LTFunction
}

// Handle passes a through the hook. It reports false when the script
// swallowed the action. Without a hook function the action passes unchanged.
func (e *Engine) Handle(ctx context.Context, api action.Dispatcher, a action.Action) (action.Action, bool, error) {
	var (
		out  = a
		keep = true
	)

	err := e.do(ctx, func() error {
		fn, ok := e.L.GetGlobal(e.handler).(*lua.LFunction)
		if !ok {
			return nil
		}

		e.api = api
		defer func() { e.api = nil }()

		arg, payload, meta := e.actionTable(a)
		if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
			return err
		}
		ret := e.L.Get(-1)
		e.L.Pop(1)

		var err error
		out, keep, err = applyResult(a, ret, payload, meta)
		return err
	})
	if err != nil {
		return a, true, err
	}
	return out, keep, nil
}

// Middleware returns pipeline middleware running the hook over every
// action. Thunks pass through. A script error fails the dispatch.
func (e *Engine) Middleware() pipeline.Middleware {
	return func(api action.Dispatcher) func(pipeline.Handler) pipeline.Handler {
		return func(next pipeline.Handler) pipeline.Handler {
			return func(ctx context.Context, d action.Dispatchable) (any, error) {
				a, ok := d.(action.Action)
				if !ok {
					return next(ctx, d)
				}

				out, keep, err := e.Handle(ctx, api, a)
				if err != nil {
					return nil, fmt.Errorf("script: %s: %w", a.Type, err)
				}
				if !keep {
					e.logger.WithField("action", a.Type).Debug("action swallowed by script")
					return nil, nil
				}
				return next(ctx, out)
			}
		}
	}
}

// Close releases the Lua state. Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.L.Close()
	e.closed = true
	return nil
}

// do runs fn against the state under the lock with the timeout applied.
func (e *Engine) do(ctx context.Context, fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	err = fn()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// actionTable builds the Lua view of a and returns the payload and meta
// values it handed out, so unchanged values can be mapped back.
func (e *Engine) actionTable(a action.Action) (*lua.LTable, lua.LValue, map[string]lua.LValue) {
	L := e.L
	t := L.CreateTable(0, 6)
	t.RawSetString("id", lua.LString(a.ID))
	t.RawSetString("type", lua.LString(a.Type))

	payload := toLua(L, a.Payload)
	t.RawSetString("payload", payload)

	meta := make(map[string]lua.LValue, len(a.Meta))
	metaTable := L.CreateTable(0, len(a.Meta))
	for k, v := range a.Meta {
		lv := toLua(L, v)
		meta[k] = lv
		metaTable.RawSetString(k, lv)
	}
	t.RawSetString("meta", metaTable)

	if a.Err != nil {
		t.RawSetString("error", lua.LString(a.Err.Error()))
	}
	if len(a.Target) > 0 {
		target := L.CreateTable(len(a.Target), 0)
		for i, name := range a.Target {
			target.RawSetInt(i+1, lua.LString(name))
		}
		t.RawSetString("target", target)
	}
	return t, payload, meta
}

// applyResult maps the hook's return value onto a.
func applyResult(a action.Action, ret lua.LValue, payload lua.LValue, meta map[string]lua.LValue) (action.Action, bool, error) {
	switch v := ret.(type) {
	case *lua.LNilType:
		return a, true, nil
	case lua.LBool:
		return a, bool(v), nil
	case lua.LString:
		if v == "" {
			return a, true, fmt.Errorf("%w: empty type", ErrInvalidResult)
		}
		a.Type = string(v)
		return a, true, nil
	case *lua.LTable:
		return applyTable(a, v, payload, meta)
	default:
		return a, true, fmt.Errorf("%w: %s", ErrInvalidResult, ret.Type())
	}
}

func applyTable(a action.Action, t *lua.LTable, payload lua.LValue, meta map[string]lua.LValue) (action.Action, bool, error) {
	switch typ := t.RawGetString("type").(type) {
	case lua.LString:
		if typ == "" {
			return a, true, fmt.Errorf("%w: empty type", ErrInvalidResult)
		}
		a.Type = string(typ)
	case *lua.LNilType:
	default:
		return a, true, fmt.Errorf("%w: type is %s", ErrInvalidResult, typ.Type())
	}

	if p := t.RawGetString("payload"); p != payload {
		a.Payload = toGo(p)
	}

	if mt, ok := t.RawGetString("meta").(*lua.LTable); ok {
		next := make(map[string]any)
		mt.ForEach(func(k, v lua.LValue) {
			key := k.String()
			if orig, seen := meta[key]; seen && orig == v {
				next[key] = a.Meta[key]
				return
			}
			next[key] = toGo(v)
		})
		a.Meta = next
	}
	return a, true, nil
}
