package reactor

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured-logging surface the loop uses for tick-level
// diagnostics: fatal backend errors, panics recovered from watcher
// callbacks, and overload notifications. NewStumpyLogger returns an
// implementation that adapts a *logiface.Logger[*stumpy.Event] to it.
type Logger interface {
	Error(op string, err error)
	Warn(msg string, fields map[string]string)
}

// nopLogger is the zero-value default: diagnostics are simply dropped.
type nopLogger struct{}

func (nopLogger) Error(string, error)             {}
func (nopLogger) Warn(string, map[string]string) {}

// stumpyLogger adapts a logiface.Logger[*stumpy.Event] to the Logger
// interface.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger builds a Logger backed by stumpy's JSON event encoder,
// configured by opts (passed through to stumpy.WithStumpy).
func NewStumpyLogger(opts ...stumpy.Option) Logger {
	return &stumpyLogger{l: stumpy.L.New(stumpy.WithStumpy(opts...))}
}

func (s *stumpyLogger) Error(op string, err error) {
	s.l.Err().Str("op", op).Str("error", err.Error()).Log("backend error")
}

func (s *stumpyLogger) Warn(msg string, fields map[string]string) {
	b := s.l.Warning()
	for k, v := range fields {
		b = b.Str(k, v)
	}
	b.Log(msg)
}
