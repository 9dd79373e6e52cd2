package obs

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *slog.Logger
)

// Logger returns the shared process logger. Call SetupLogger first to pick a
// level; otherwise info is used.
func Logger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = newLogger("info")
	})
	return logger
}

// SetupLogger configures the shared logger and installs it as slog's default.
func SetupLogger(level string) *slog.Logger {
	loggerOnce.Do(func() {
		logger = newLogger(level)
	})
	slog.SetDefault(logger)
	return logger
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
