package gpu

import (
	"log/slog"

	"github.com/gogpu/uavcheck/internal/logging"
)

// logger stores the package logger. The zero value discards output.
var logger logging.Logger

// slogger returns the current package logger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger { return logger.Get() }

// SetLogger updates the package logger. Nil restores the silent default.
func SetLogger(l *slog.Logger) { logger.Set(l) }
