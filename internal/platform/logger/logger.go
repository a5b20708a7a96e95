package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns the process-wide JSON logger. The level comes from
// NUCA_LOG_LEVEL (debug, info, warn, error) and defaults to info.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	return slog.New(handler).With("service", "nuca")
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("NUCA_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
