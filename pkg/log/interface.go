// Package log provides the structured logging interface used across automl.
//
// The interface is slog-shaped so call sites stay backend-agnostic; the
// default backend is zerolog (see NewZerologProvider).
//
//	logger := log.GetLoggerWithName("automl.tuner").With(log.ModelNameKey, "LightGBM")
//	logger.Info("trial finished", log.TrialKey, 3, log.ObjectiveKey, 0.12)
package log

import (
	"context"
)

// Logger is a structured, levelled logger. Fields are key-value pairs; an
// error passed as the first field of Error is logged with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers sharing one backend and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
