package worklog

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscardDoesNotPanic(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Info("hello")
		l.Warn("careful")
		l.Error("boom")
	})
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("hello")
	})
}

func TestNewTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.NewTextHandler(&buf, nil), "executor")
	l.Info("tile done", "tile", 3)
	assert.Contains(t, buf.String(), "component=executor")
	assert.Contains(t, buf.String(), "tile done")
}
