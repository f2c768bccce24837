package botlog

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger writes diagnostic lines into a Buffer and mirrors them to a
// zerolog logger. It is a plain value; Prefixed returns a copy with a
// different prefix and never mutates the receiver.
type Logger struct {
	buf    *Buffer
	zl     zerolog.Logger
	prefix string
}

// NewLogger returns a logger writing into buf and mirroring to zl
func NewLogger(buf *Buffer, zl zerolog.Logger) Logger {
	return Logger{buf: buf, zl: zl}
}

// Prefixed returns a logger whose lines are tagged "[prefix] "
func (l Logger) Prefixed(prefix string) Logger {
	l.prefix = prefix
	return l
}

// Prefix returns the logger's prefix
func (l Logger) Prefix() string {
	return l.prefix
}

func (l Logger) Debug(msg string) {
	l.write(LevelDebug, l.zl.Debug(), msg, nil)
}

func (l Logger) Info(msg string) {
	l.write(LevelInfo, l.zl.Info(), msg, nil)
}

func (l Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l Logger) Warn(msg string) {
	l.write(LevelWarn, l.zl.Warn(), msg, nil)
}

// Error records msg at ERROR; a non-nil err is appended after a colon
func (l Logger) Error(msg string, err error) {
	l.write(LevelError, l.zl.Error(), msg, err)
}

func (l Logger) write(level Level, ev *zerolog.Event, msg string, err error) {
	text := msg
	if l.prefix != "" {
		text = "[" + l.prefix + "] " + msg
	}
	if err != nil {
		text = fmt.Sprintf("%s: %v", text, err)
	}

	if l.buf != nil {
		l.buf.Append(level, text)
	}

	// ev is nil when the level is disabled
	if ev == nil {
		return
	}
	if l.prefix != "" {
		ev = ev.Str("scope", l.prefix)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}
