// Package worklog is the engine's internal structured logger: a thin
// wrapper over log/slog so executor/selector/planner can report
// progress and decisions without the core library ever writing
// colorized strings directly (that stays cmd/vfxc's job — see the
// teacher's utils.DecorateText, which this package deliberately does
// not reproduce inside the library).
package worklog

import (
	"io"
	"log/slog"
)

// Logger is a leveled logger scoped to one component name.
type Logger struct {
	slog *slog.Logger
}

// New wraps an slog.Logger, tagging every record with component=name.
func New(h slog.Handler, name string) *Logger {
	return &Logger{slog: slog.New(h).With("component", name)}
}

// Discard returns a Logger that drops everything, for callers that
// don't want to wire up real output (tests, library defaults).
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) Info(msg string, args ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Error(msg, args...)
}
