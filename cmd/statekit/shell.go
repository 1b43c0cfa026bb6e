package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dshills/statekit/internal/action"
	"github.com/dshills/statekit/internal/config"
	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/middleware"
	"github.com/dshills/statekit/internal/middleware/script"
	"github.com/dshills/statekit/internal/store"
)

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// shell runs line commands against a store.
type shell struct {
	out    io.Writer
	logger *logging.Logger

	store    *store.Store
	counter  *store.Slice[counterState]
	todos    *store.Slice[todosState]
	settings *store.Slice[settingsState]

	metrics *middleware.Metrics
	engine  *script.Engine

	unsubscribe []func()
}

func newShell(cfg config.Config, logger *logging.Logger, out io.Writer) (*shell, error) {
	st := store.New(cfg.StoreOptions(logger))
	sh := &shell{out: out, logger: logger, store: st}

	var err error
	if sh.counter, err = createCounter(st); err != nil {
		return nil, err
	}
	if sh.todos, err = createTodos(st); err != nil {
		return nil, err
	}
	if sh.settings, err = createSettings(st, cfg); err != nil {
		return nil, err
	}

	// Applied innermost first; recovery wraps everything.
	st.ApplyMiddleware(middleware.Tag("source", "cli"))
	if cfg.Store.ActionLog {
		st.ApplyMiddleware(middleware.Logger(logger))
	}
	if cfg.Store.Metrics {
		sh.metrics = middleware.NewMetrics()
		st.ApplyMiddleware(sh.metrics.Middleware())
	}
	if cfg.Script.Path != "" {
		sh.engine = script.New(script.WithTimeout(cfg.Script.Timeout.Std()), script.WithLogger(logger))
		if err := sh.engine.LoadFile(cfg.Script.Path); err != nil {
			sh.Close()
			return nil, fmt.Errorf("loading script %s: %w", cfg.Script.Path, err)
		}
		st.ApplyMiddleware(sh.engine.Middleware())
	}
	st.ApplyMiddleware(middleware.Recover(logger))

	unsub, err := sh.settings.Subscribe(func(s settingsState) {
		logger.SetLevel(logging.ParseLevel(s.Config.Logging.Level))
	})
	if err != nil {
		sh.Close()
		return nil, err
	}
	sh.unsubscribe = append(sh.unsubscribe, unsub)

	st.OnDispose(func() {
		logger.Debug("shell store disposed after %d dispatches", st.Stats().Dispatches)
	})
	return sh, nil
}

// Reload applies a configuration delivered by the config watcher.
func (sh *shell) Reload(ctx context.Context, cfg config.Config) {
	if _, err := sh.store.Dispatch(ctx, action.New(actionConfigReloaded, cfg).To("settings")); err != nil {
		sh.logger.Error("applying reloaded config: %v", err)
	}
}

// Run reads commands from in until quit, end of input or ctx is done.
func (sh *shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := sh.Exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Exec runs one command line.
func (sh *shell) Exec(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return nil

	case "inc", "dec":
		n := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("%s: invalid amount %q", cmd, arg)
			}
			n = v
		}
		typ := actionIncrement
		if cmd == "dec" {
			typ = actionDecrement
		}
		if _, err := sh.store.Dispatch(ctx, sh.counter.Action(typ, n)); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "counter: %d\n", sh.counter.State().Value)
		return nil

	case "add":
		if _, err := addTodo.Run(ctx, sh.store, arg); err != nil {
			return err
		}
		todos := sh.todos.State()
		if len(todos.Items) == 0 {
			return nil
		}
		last := todos.Items[len(todos.Items)-1]
		fmt.Fprintf(sh.out, "added #%d: %s\n", last.ID, last.Text)
		return nil

	case "done":
		id, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("done: invalid todo number %q", arg)
		}
		if _, err := sh.store.Dispatch(ctx, toggleTodo(id)); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "toggled #%d\n", id)
		return nil

	case "state":
		sh.printState()
		return nil

	case "stats":
		sh.printStats()
		return nil

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try inc, dec, add, done, state, stats, quit)", cmd)
	}
}

func (sh *shell) printState() {
	for _, name := range sh.store.SliceNames() {
		switch name {
		case "counter":
			fmt.Fprintf(sh.out, "counter: %d\n", sh.counter.State().Value)
		case "todos":
			todos := sh.todos.State()
			fmt.Fprintf(sh.out, "todos: %d\n", len(todos.Items))
			for _, t := range todos.Items {
				mark := " "
				if t.Done {
					mark = "x"
				}
				fmt.Fprintf(sh.out, "  %d. [%s] %s\n", t.ID, mark, t.Text)
			}
			if todos.LastError != "" {
				fmt.Fprintf(sh.out, "  last error: %s\n", todos.LastError)
			}
		case "settings":
			s := sh.settings.State()
			scriptPath := s.Config.Script.Path
			if scriptPath == "" {
				scriptPath = "-"
			}
			fmt.Fprintf(sh.out, "settings: log level %s, max depth %d, script %s, reloads %d\n",
				s.Config.Logging.Level, s.Config.Store.MaxDispatchDepth, scriptPath, s.Reloads)
		}
	}
}

func (sh *shell) printStats() {
	st := sh.store.Stats()
	fmt.Fprintf(sh.out, "dispatches: %d, deferred: %d, overflows: %d, reducer panics: %d, listener panics: %d\n",
		st.Dispatches, st.Deferred, st.Overflows, st.ReducerPanics, st.ListenerPanics)

	if sh.metrics == nil {
		return
	}
	for _, am := range sh.metrics.TopActions(5) {
		fmt.Fprintf(sh.out, "  %-24s %4d  avg %s  errors %.0f%%\n",
			am.Type, am.DispatchCount, am.AverageDuration(), am.ErrorRate())
	}
}

// Close disposes the store and releases the script engine.
func (sh *shell) Close() {
	for _, unsub := range sh.unsubscribe {
		unsub()
	}
	sh.store.Dispose()
	if sh.engine != nil {
		sh.engine.Close()
	}
}
