package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a *slog.Logger writing to w. The level parameter accepts
// "debug", "info", "warn", "error" (case-insensitive) and defaults to info
// if unrecognized. Every record carries a service attribute so entries stay
// attributable once aggregated alongside the identity platform's logs.
func New(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler).With("service", "overhill")
}

// Setup creates the process logger on stderr, sets it as the default, and
// returns it.
func Setup(level string) *slog.Logger {
	logger := New(level, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
