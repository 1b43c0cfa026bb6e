// Package main is the entry point for the statekit demo shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/statekit/internal/config"
	"github.com/dshills/statekit/internal/config/watcher"
	"github.com/dshills/statekit/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options holds the command-line flags.
type options struct {
	ConfigPath  string
	ScriptPath  string
	LogLevel    string
	ShowVersion bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if opts.ShowVersion {
		fmt.Fprintf(stdout, "statekit %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.ScriptPath != "" {
		cfg.Script.Path = opts.ScriptPath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LoggerConfig(stderr))

	shell, err := newShell(cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer shell.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.ConfigPath != "" {
		w, err := watcher.New(opts.ConfigPath, watcher.WithLogger(logger))
		if err != nil {
			logger.Warn("config live reload disabled: %v", err)
		} else {
			go w.Run(ctx, func(next config.Config) {
				if opts.ScriptPath != "" {
					next.Script.Path = opts.ScriptPath
				}
				if opts.LogLevel != "" {
					next.Logging.Level = opts.LogLevel
				}
				shell.Reload(ctx, next)
			})
		}
	}

	if err := shell.Run(ctx, stdin); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("statekit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	fs.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.ScriptPath, "script", "", "Lua script run over every action")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.ShowVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "statekit - action-dispatch state store shell\n\n")
		fmt.Fprintf(stderr, "Usage: statekit [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nCommands read from stdin:\n")
		fmt.Fprintf(stderr, "  inc [n], dec [n]   change the counter\n")
		fmt.Fprintf(stderr, "  add <text>         add a todo\n")
		fmt.Fprintf(stderr, "  done <n>           toggle todo n\n")
		fmt.Fprintf(stderr, "  state, stats       print the state tree or dispatch statistics\n")
		fmt.Fprintf(stderr, "  quit               exit\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return opts, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", opts.LogLevel)
	}

	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}
