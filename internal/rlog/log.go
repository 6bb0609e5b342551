// Package rlog provides the leveled logger used throughout the server:
// a thin wrapper over the standard library logger with color-tagged
// levels and a package-wide DEBUG switch, instead of pulling in a full
// structured-logging framework.
package rlog

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/gookit/color"
)

// Global configuration, mirroring pkg/log's package-level knobs.
var (
	DEBUG  bool      = false
	Output io.Writer = os.Stderr
)

// Logger is a named, leveled logger instance. One is created per
// subsystem (main, server, repl, rdb, dispatch) at construction time.
type Logger struct {
	*log.Logger

	name atomic.Pointer[string]
}

// New creates a logger tagged with the given subsystem name.
func New(name string) *Logger {
	l := &Logger{Logger: log.New(Output, "", log.LstdFlags)}
	l.SetName(name)
	return l
}

func (l *Logger) SetName(name string) {
	l.name.Store(&name)
	l.Logger.SetPrefix("[" + name + "] ")
}

func (l *Logger) Name() string {
	if v := l.name.Load(); v != nil {
		return *v
	}
	return ""
}

func (l *Logger) Infof(format string, args ...any) {
	l.Logger.Println(color.Info.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Logger.Println(color.Warn.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Logger.Println(color.Danger.Sprintf(format, args...))
}

// Debugf logs only when DEBUG is enabled. Every subsystem logger
// shares the single global switch — this server has too few
// subsystems to warrant per-namespace filtering.
func (l *Logger) Debugf(format string, args ...any) {
	if DEBUG {
		l.Logger.Println(color.Debug.Sprintf(format, args...))
	}
}
