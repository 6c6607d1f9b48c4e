// Package logging holds the swappable slog loggers of the internal packages.
//
// Every package that logs owns a [Logger] and exposes SetLogger. The root
// package propagates uavcheck.SetLogger to all of them.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var nop = slog.New(nopHandler{})

// Nop returns a logger that discards all output.
func Nop() *slog.Logger { return nop }

// Logger stores a *slog.Logger that can be replaced concurrently with use.
// The zero value discards all output.
type Logger struct {
	p atomic.Pointer[slog.Logger]
}

// Get returns the current logger.
func (l *Logger) Get() *slog.Logger {
	if lg := l.p.Load(); lg != nil {
		return lg
	}
	return nop
}

// Set replaces the logger. Nil restores the silent default.
func (l *Logger) Set(lg *slog.Logger) {
	if lg == nil {
		lg = nop
	}
	l.p.Store(lg)
}
