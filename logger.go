package uavcheck

import (
	"log/slog"

	"github.com/gogpu/uavcheck/internal/cpu"
	"github.com/gogpu/uavcheck/internal/gpu"
	"github.com/gogpu/uavcheck/internal/harness"
	"github.com/gogpu/uavcheck/internal/logging"
	"github.com/gogpu/uavcheck/internal/readback"
	"github.com/gogpu/uavcheck/internal/shader"
	"github.com/gogpu/uavcheck/internal/shadercache"
)

var logger logging.Logger

// SetLogger configures the logger for uavcheck and all its sub-packages.
// By default, uavcheck produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by uavcheck:
//   - [slog.LevelDebug]: buffer sizes, bind slots, submission indices, cache hits
//   - [slog.LevelInfo]: the selected adapter
//   - [slog.LevelWarn]: compiler errors, aborted configurations, corrupt cache entries
//
// Example:
//
//	uavcheck.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logger.Set(l)
	l = logger.Get()

	cpu.SetLogger(l)
	gpu.SetLogger(l)
	harness.SetLogger(l)
	readback.SetLogger(l)
	shader.SetLogger(l)
	shadercache.SetLogger(l)
}

// Logger returns the current logger used by uavcheck.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logger.Get()
}
