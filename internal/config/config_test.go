package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/statekit/internal/config"
	"github.com/dshills/statekit/internal/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func noEnv() map[string]string {
	return map[string]string{}
}

func TestDefault(t *testing.T) {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Store.MaxDispatchDepth != 10 {
		t.Errorf("expected depth 10, got %d", cfg.Store.MaxDispatchDepth)
	}
	if !cfg.Store.RecoverPanics || !cfg.Store.Thunk {
		t.Error("expected panic recovery and thunk on by default")
	}
	if cfg.Script.Timeout.Std() != time.Second {
		t.Errorf("expected 1s script timeout, got %s", cfg.Script.Timeout.Std())
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "statekit.toml", `
[store]
max_dispatch_depth = 20
metrics = false

[logging]
level = "debug"

[script]
path = "hook.lua"
timeout = "250ms"
`)

	cfg, err := config.LoadWithEnv(path, noEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.MaxDispatchDepth != 20 || cfg.Store.Metrics {
		t.Errorf("unexpected store section %+v", cfg.Store)
	}
	if !cfg.Store.RecoverPanics {
		t.Error("key absent from the file lost its default")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Prefix != "statekit" {
		t.Errorf("unexpected logging section %+v", cfg.Logging)
	}
	if cfg.Script.Path != "hook.lua" || cfg.Script.Timeout.Std() != 250*time.Millisecond {
		t.Errorf("unexpected script section %+v", cfg.Script)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "statekit.yml", `
store:
  max_dispatch_depth: 5
  recover_panics: false
logging:
  prefix: demo
script:
  timeout: 2s
`)

	cfg, err := config.LoadWithEnv(path, noEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store.MaxDispatchDepth != 5 || cfg.Store.RecoverPanics {
		t.Errorf("unexpected store section %+v", cfg.Store)
	}
	if cfg.Logging.Prefix != "demo" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected logging section %+v", cfg.Logging)
	}
	if cfg.Script.Timeout.Std() != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.Script.Timeout.Std())
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")

	cfg, err := config.LoadWithEnv(path, noEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != config.Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadNoPath(t *testing.T) {
	cfg, err := config.LoadWithEnv("", noEnv())
	if err != nil {
		t.Fatal(err)
	}
	if cfg != config.Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "statekit.toml", "[store]\nmax_dispatch_depth = 20\n")

	cfg, err := config.LoadWithEnv(path, map[string]string{
		"STATEKIT_STORE_MAX_DISPATCH_DEPTH": "30",
		"STATEKIT_STORE_THUNK":              "false",
		"STATEKIT_LOG_LEVEL":                "warn",
		"STATEKIT_SCRIPT_TIMEOUT":           "5s",
		"OTHER_LOG_LEVEL":                   "error",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Store.MaxDispatchDepth != 30 {
		t.Errorf("env did not override file: %d", cfg.Store.MaxDispatchDepth)
	}
	if cfg.Store.Thunk {
		t.Error("expected thunk disabled by env")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %q", cfg.Logging.Level)
	}
	if cfg.Script.Timeout.Std() != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Script.Timeout.Std())
	}
}

func TestProcessEnv(t *testing.T) {
	t.Setenv("STATEKIT_LOG_PREFIX", "from-env")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Prefix != "from-env" {
		t.Errorf("expected prefix from process env, got %q", cfg.Logging.Prefix)
	}
}

func TestEnvError(t *testing.T) {
	_, err := config.LoadWithEnv("", map[string]string{"STATEKIT_STORE_MAX_DISPATCH_DEPTH": "lots"})
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env error, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(error) bool
	}{
		{
			name:    "unsupported extension",
			file:    "statekit.json",
			content: "{}",
			check:   func(err error) bool { return errors.Is(err, config.ErrUnsupportedFormat) },
		},
		{
			name:    "bad toml",
			file:    "statekit.toml",
			content: "[store\n",
			check: func(err error) bool {
				var perr *config.ParseError
				return errors.As(err, &perr)
			},
		},
		{
			name:    "unknown key",
			file:    "statekit.yaml",
			content: "store:\n  depth: 3\n",
			check: func(err error) bool {
				var perr *config.ParseError
				return errors.As(err, &perr)
			},
		},
		{
			name:    "bad duration",
			file:    "statekit.toml",
			content: "[script]\ntimeout = \"soon\"\n",
			check: func(err error) bool {
				var perr *config.ParseError
				return errors.As(err, &perr)
			},
		},
		{
			name:    "invalid values",
			file:    "statekit.toml",
			content: "[store]\nmax_dispatch_depth = 0\n[logging]\nlevel = \"loud\"\n",
			check: func(err error) bool {
				var verr *config.ValidationError
				return errors.Is(err, config.ErrInvalid) && errors.As(err, &verr) && len(verr.Problems) == 2
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := config.LoadWithEnv(path, noEnv())
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.LoadWithEnv(filepath.Join(t.TempDir(), "missing.toml"), noEnv())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := config.Default()
	cfg.Store.MaxDispatchDepth = 4
	cfg.Store.Thunk = false
	cfg.Logging.Level = "error"

	opts := cfg.StoreOptions(nil)
	if opts.MaxDispatchDepth != 4 || !opts.DisableThunk || !opts.RecoverFromPanic {
		t.Errorf("unexpected store options %+v", opts)
	}

	lc := cfg.LoggerConfig(os.Stderr)
	if lc.Level != logging.LevelError || lc.Prefix != "statekit" {
		t.Errorf("unexpected logger config %+v", lc)
	}
}
