package shader

import (
	"log/slog"

	"github.com/gogpu/uavcheck/internal/logging"
)

var logger logging.Logger

// slogger returns the current package logger.
func slogger() *slog.Logger { return logger.Get() }

// SetLogger sets the logger used by the compiler. Nil disables logging.
func SetLogger(l *slog.Logger) { logger.Set(l) }
