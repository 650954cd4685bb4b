package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Log is the global logger instance. It falls back to slog's default until Setup runs.
var Log = slog.Default()

// Setup initializes the global logger based on the environment
func Setup(env string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if env == "development" {
		opts.Level = slog.LevelDebug
	}

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Log = slog.New(handler)
	slog.SetDefault(Log)
}

// Discard silences all output. Tests use it to keep runs quiet.
func Discard() {
	Log = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Info logs an info message
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

// ErrorContext logs an error message carrying the request context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Log.ErrorContext(ctx, msg, args...)
}
