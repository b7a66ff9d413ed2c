// Package wayfinder provides navigation orchestration for presentation code:
// an ordered navigation history with disposal semantics, a registry of
// lazily-built modules, and a navigation service that drives cancellable,
// multi-phase transitions between participants, including modal sub-flows
// that return values and proxy navigation into named services.
//
// This package holds the shared error taxonomy, configuration loading and
// logger setup. The navigation core lives in the history, registry and
// navigation subpackages.
package wayfinder

import (
	"log/slog"
	"os"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder/internal"
)

// DebugEnvVar, when set, raises the internal navigation logger to debug.
const DebugEnvVar = "WAYFINDER_DEBUG"

// Options configures process-wide logging.
type Options struct {
	LogPath   string // Full path for log file including filename (creates parent directories)
	LogFormat string // "json" (default) or "text"
	LogLevel  string // Application logger level: debug, info, warn, error
}

// Init configures the application and internal loggers.
// Call before creating navigation services so their default logger picks it up.
func Init(options Options) {
	if options.LogPath != "" {
		internal.SetLogPath(options.LogPath)
	}
	if options.LogFormat != "" {
		internal.SetLogFormat(options.LogFormat)
	}

	if options.LogLevel != "" {
		internal.SetRawLogLevel(options.LogLevel)
	}

	if os.Getenv(DebugEnvVar) != "" {
		internal.SetInternalLogLevel(slog.LevelDebug)
	} else {
		internal.SetInternalLogLevel(slog.LevelWarn)
	}
}

// Close flushes and closes the log file, if any.
func Close() {
	internal.CloseLogger()
}

// GetLogger returns the application logger for structured logging.
func GetLogger() *slog.Logger {
	return internal.GetLogger()
}

// GetInternalLogger returns the logger navigation services use by default.
func GetInternalLogger() *slog.Logger {
	return internal.GetInternalLogger()
}

// SetLogLevel sets the minimum log level for the application logger.
func SetLogLevel(level slog.Level) {
	internal.SetLogLevel(level)
}

// SetRawLogLevel parses and sets the log level from a string (e.g., "debug", "info", "error").
func SetRawLogLevel(level string) {
	internal.SetRawLogLevel(level)
}
