package logging

import "log/slog"

// FromSlog adapts a *slog.Logger to [Logger]. *slog.Logger already satisfies
// the interface structurally; this constructor exists so call sites read as
// intent ("use slog") rather than relying on structural typing silently.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return Default()
	}
	return slogAdapter{l}
}

type slogAdapter struct {
	l *slog.Logger
}

var _ Logger = slogAdapter{}

func (a slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
