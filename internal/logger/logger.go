package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Configure installs the process-wide default logger.
func Configure(levelStr string, env string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, levelStr, env)))
}

// NewHandler returns a colored tint handler for development environments and
// a JSON handler otherwise.
func NewHandler(w io.Writer, levelStr string, env string) slog.Handler {
	level := parseLogLevel(levelStr)
	switch strings.ToLower(env) {
	case "dev", "development":
		return tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	default:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
