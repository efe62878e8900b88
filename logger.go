package memgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithComponent adds a component field to the logger (e.g. "arena",
// "tracking", "fixedpool").
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// WithSize adds a size field (bytes) to the logger.
func (l *Logger) WithSize(size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("size", size),
	}
}

// WithCapacity adds a capacity field to the logger.
func (l *Logger) WithCapacity(capacity int) *Logger {
	return &Logger{
		Logger: l.Logger.With("capacity", capacity),
	}
}

// LogAlloc logs an allocation.
func (l *Logger) LogAlloc(ctx context.Context, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allocation failed",
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "allocation completed",
			"size", size,
		)
	}
}

// LogFree logs a deallocation.
func (l *Logger) LogFree(ctx context.Context, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "free failed",
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "free completed",
			"size", size,
		)
	}
}

// LogLeaks logs the outcome of a leak report.
func (l *Logger) LogLeaks(ctx context.Context, count int, bytes int64) {
	if count > 0 {
		l.ErrorContext(ctx, "leaks detected",
			"live_allocations", count,
			"live_bytes", bytes,
		)
	} else {
		l.DebugContext(ctx, "no leaks detected")
	}
}

// LogPurge logs an arena purge operation.
func (l *Logger) LogPurge(ctx context.Context, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "purge failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "purge completed",
			"bytes", bytes,
		)
	}
}

// LogClose logs a stack close operation.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "close completed")
	}
}
