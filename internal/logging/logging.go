// Package logging installs a charmbracelet/log handler behind log/slog so the
// rest of the module can keep using package-level slog calls.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Config controls the default logger
type Config struct {
	Level      string
	JSON       bool
	Output     io.Writer
	TimeFormat string
}

// DefaultConfig logs text at info level to stderr
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// ParseLevel maps a level name to a charm level, defaulting to info
func ParseLevel(name string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// New builds a slog logger writing through charmbracelet/log
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "15:04:05"
	}
	handler := charmlog.NewWithOptions(cfg.Output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.JSON {
		handler.SetFormatter(charmlog.JSONFormatter)
	} else {
		handler.SetFormatter(charmlog.TextFormatter)
	}
	return slog.New(handler)
}

// Setup replaces the slog default logger
func Setup(cfg Config) {
	slog.SetDefault(New(cfg))
}
