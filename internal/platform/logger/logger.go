package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON in production, text elsewhere.
func New(environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard is a logger for tests and optional collaborators.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
