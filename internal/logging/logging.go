package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a deliberately small, framework-agnostic logging interface.
// Components depend on this rather than on the backend so tests can swap in
// a recording logger.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger with persistent fields.
	With(fields ...Field) Logger
}

// Field is a simple key/value pair for structured logging fields.
type Field struct {
	Key   string
	Value any
}

// Module names the package a child logger belongs to. The process-wide
// name set by NewLogger stays under "component".
func Module(name string) Field {
	return Field{Key: "module", Value: name}
}

// StdoutLogger writes JSON lines through zerolog.
type StdoutLogger struct {
	zl zerolog.Logger
}

// NewStdoutLogger creates a logger writing to stdout at info level.
// component is optional and is attached to every line.
func NewStdoutLogger(component string) *StdoutLogger {
	return NewLogger(os.Stdout, component, "info")
}

// NewLogger creates a logger writing to w. Unknown levels fall back to info.
func NewLogger(w io.Writer, component, level string) *StdoutLogger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return &StdoutLogger{zl: ctx.Logger()}
}

func (s *StdoutLogger) log(ev *zerolog.Event, msg string, fields ...Field) {
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

func (s *StdoutLogger) Debug(msg string, fields ...Field) {
	s.log(s.zl.Debug(), msg, fields...)
}

func (s *StdoutLogger) Info(msg string, fields ...Field) {
	s.log(s.zl.Info(), msg, fields...)
}

func (s *StdoutLogger) Warn(msg string, fields ...Field) {
	s.log(s.zl.Warn(), msg, fields...)
}

func (s *StdoutLogger) Error(msg string, fields ...Field) {
	s.log(s.zl.Error(), msg, fields...)
}

// With returns a child logger carrying fields on every line.
func (s *StdoutLogger) With(fields ...Field) Logger {
	ctx := s.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &StdoutLogger{zl: ctx.Logger()}
}
