package mplsverify

// logging.go configures the structured logger the command line tool and the
// evaluator report through.  The library itself stays quiet unless handed a
// logger.

import (
	"log/slog"
	"os"
	"strings"
)

// CreateLogger constructs a slog.Logger writing to stderr with the requested
// level ("debug", "info", "warn", "error") and format ("text" or "json")
func CreateLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
