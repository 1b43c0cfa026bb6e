// Package watcher reloads a config file when it changes on disk.
//
// The file's directory is watched rather than the file itself, so editors
// that save by renaming a temporary file over the original are seen.
// Bursts of events are collapsed by a debounce delay.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/statekit/internal/config"
	"github.com/dshills/statekit/internal/logging"
)

// DefaultDebounce is the default delay between the last event and a reload.
const DefaultDebounce = 100 * time.Millisecond

// ErrClosed is returned by Run on a closed watcher.
var ErrClosed = errors.New("watcher: closed")

// Handler receives each successfully reloaded configuration.
type Handler func(config.Config)

// Watcher reloads one config file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger
	load     func(path string) (config.Config, error)
	onError  func(error)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	closed  bool
	reloads int
	errors  int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay. Negative values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for reload diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithLoader replaces config.Load as the reload function.
func WithLoader(load func(path string) (config.Config, error)) Option {
	return func(w *Watcher) {
		if load != nil {
			w.load = load
		}
	}
}

// WithErrorHandler sets a callback for failed reloads. The previous
// configuration stays in effect after a failure.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New starts watching path. Run delivers the reloads.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		logger:   logging.Discard(),
		load:     config.Load,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("config-watcher").WithField("path", abs)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run calls onChange with each reloaded configuration until ctx is done or
// the watcher is closed. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange Handler) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()
	defer w.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.fail(err)

		case <-timerCh:
			timerCh = nil
			w.reload(onChange)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	// A removed file is reported when it comes back.
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) reload(onChange Handler) {
	cfg, err := w.load(w.path)
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("configuration reloaded")
	if onChange != nil {
		onChange(cfg)
	}
}

func (w *Watcher) fail(err error) {
	w.mu.Lock()
	w.errors++
	w.mu.Unlock()

	w.logger.Warn("configuration reload failed: %v", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// Stats returns the number of successful and failed reloads.
func (w *Watcher) Stats() (reloads, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.errors
}

// Close stops watching. Closing twice is a no-op.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
