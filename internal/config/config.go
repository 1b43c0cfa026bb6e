package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/statekit/internal/logging"
	"github.com/dshills/statekit/internal/store"
	"github.com/dshills/statekit/internal/store/queue"
)

// Config is the complete statekit configuration.
type Config struct {
	Store   StoreConfig   `toml:"store" yaml:"store" envPrefix:"STORE_"`
	Logging LoggingConfig `toml:"logging" yaml:"logging" envPrefix:"LOG_"`
	Script  ScriptConfig  `toml:"script" yaml:"script" envPrefix:"SCRIPT_"`
}

// StoreConfig holds the store knobs.
type StoreConfig struct {
	// MaxDispatchDepth bounds nested draining of the dispatch queue.
	MaxDispatchDepth int `toml:"max_dispatch_depth" yaml:"max_dispatch_depth" env:"MAX_DISPATCH_DEPTH"`

	// RecoverPanics recovers reducer and listener panics.
	RecoverPanics bool `toml:"recover_panics" yaml:"recover_panics" env:"RECOVER_PANICS"`

	// Thunk installs the thunk middleware.
	Thunk bool `toml:"thunk" yaml:"thunk" env:"THUNK"`

	// ActionLog installs the action logger middleware.
	ActionLog bool `toml:"action_log" yaml:"action_log" env:"ACTION_LOG"`

	// Metrics installs the dispatch metrics middleware.
	Metrics bool `toml:"metrics" yaml:"metrics" env:"METRICS"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" env:"LEVEL"`
	Prefix string `toml:"prefix" yaml:"prefix" env:"PREFIX"`
}

// ScriptConfig holds the Lua middleware settings. An empty path disables it.
type ScriptConfig struct {
	Path    string   `toml:"path" yaml:"path" env:"PATH"`
	Timeout Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{
			MaxDispatchDepth: queue.DefaultMaxDepth,
			RecoverPanics:    true,
			Thunk:            true,
			ActionLog:        true,
			Metrics:          true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Prefix: "statekit",
		},
		Script: ScriptConfig{
			Timeout: Duration(time.Second),
		},
	}
}

// Validate checks the configuration for values the store cannot use.
func (c Config) Validate() error {
	var problems []string

	if c.Store.MaxDispatchDepth < 1 {
		problems = append(problems, fmt.Sprintf("store.max_dispatch_depth must be at least 1, got %d", c.Store.MaxDispatchDepth))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Script.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("script.timeout must not be negative, got %s", c.Script.Timeout.Std()))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// StoreOptions converts the store section into store options.
func (c Config) StoreOptions(l *logging.Logger) store.Options {
	opts := store.DefaultOptions().
		WithMaxDispatchDepth(c.Store.MaxDispatchDepth).
		WithPanicRecovery(c.Store.RecoverPanics).
		WithLogger(l)
	if !c.Store.Thunk {
		opts = opts.WithoutThunk()
	}
	return opts
}

// LoggerConfig converts the logging section into a logger configuration.
func (c Config) LoggerConfig(out io.Writer) logging.Config {
	return logging.Config{
		Level:  logging.ParseLevel(c.Logging.Level),
		Output: out,
		Prefix: c.Logging.Prefix,
	}
}
