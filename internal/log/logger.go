package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Setup initializes the global logger from the -v count.
// logic: 0 = warn, 1 = info, 2 = debug, 3+ = debug with source positions.
// CI (at least info) and the DEBUG / GitHub Actions debug variables
// (debug) can only raise the level.
func Setup(verbosity int) {
	once.Do(func() {
		if os.Getenv("CI") != "" && verbosity < 1 {
			verbosity = 1
		}
		if debugEnv() && verbosity < 2 {
			verbosity = 2
		}
		var l slog.Level
		switch verbosity {
		case 0:
			l = slog.LevelWarn
		case 1:
			l = slog.LevelInfo
		default:
			l = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level:     l,
			AddSource: verbosity >= 3,
		}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

func debugEnv() bool {
	for _, name := range []string{"DEBUG", "ACTIONS_RUNNER_DEBUG", "ACTIONS_STEP_DEBUG"} {
		if v := os.Getenv(name); v != "" && v != "0" && v != "false" {
			return true
		}
	}
	return false
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup(1)
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithRemote returns a logger with the remote field set.
func WithRemote(id string) *slog.Logger {
	return Get().With(slog.String("remote", id))
}

// WithLabel returns a logger with the label field set.
func WithLabel(label string) *slog.Logger {
	return Get().With(slog.String("label", label))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
