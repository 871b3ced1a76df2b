// Package logging configures the process-wide zerolog logger.
//
// Every package logs through the zerolog global (github.com/rs/zerolog/log),
// so configuration happens exactly once, early in main. Setup wires level,
// console formatting, and optional file output; For hands out component
// sub-loggers so log lines stay attributable.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config controls global logger behavior.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string

	// Console enables human-readable output on stderr. When false the
	// logger emits raw JSON, which is what you want under systemd or a
	// log shipper.
	Console bool

	// NoColor strips ANSI colors from console output.
	NoColor bool

	// FilePath, when set, tees all output into the named file. The
	// directory is created if needed.
	FilePath string
}

// DefaultConfig returns the standard service configuration: info level,
// console output with color.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// VerboseConfig returns a debug-level configuration for --verbose runs.
func VerboseConfig() Config {
	return Config{Level: "debug", Console: true}
}

// Setup installs the global logger. Safe to call again with a different
// config (the monitor TUI re-routes output to a file before taking over
// the terminal).
func Setup(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    cfg.NoColor,
			TimeFormat: "15:04:05",
		})
	}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339})
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return nil
}

// RedirectToFile sends all subsequent log output to a timestamped file
// under dir, silencing the terminal. The monitor TUI calls this before it
// takes over the screen; everything logging through the zerolog global
// follows automatically.
func RedirectToFile(dir, prefix string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	stamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", prefix, stamp))
	if err := Setup(Config{Level: zerolog.GlobalLevel().String(), FilePath: path}); err != nil {
		return "", err
	}
	return path, nil
}

// For returns a sub-logger tagged with a component name, e.g.
// logging.For("respcache").Info().Msg("...").
func For(component string) zerolog.Logger {
	return zlog.With().Str("component", component).Logger()
}

// ParseLevel maps a config string onto a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
