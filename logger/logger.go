// Package logger builds the process-wide slog.Logger, matching the
// teacher's pervasive log/slog usage. No syslog sink is implemented: the
// Syslog option below is accepted and ignored.
package logger

import (
	"log/slog"
	"os"
)

// Level is one of the five levels spec.md §6.1/§6.2's --log-level flag
// accepts.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace" // mapped onto slog's debug level minus 4
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	case LevelTrace:
		return slog.LevelDebug - 4
	default:
		return slog.LevelInfo
	}
}

// Config configures the process logger.
type Config struct {
	Level  Level
	Stderr bool
	Syslog bool // accepted but not wired to any syslog writer
}

// New builds a slog.Logger writing text-formatted records to stderr
// (spec.md's --log-stderr), at the configured level. It writes to stderr
// whatever the Stderr and Syslog fields say.
func New(cfg Config) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level.slogLevel()})
	return slog.New(handler)
}
