package bt

// Logger is the structured logging interface the engine writes to.
// Args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// With returns a Logger that appends args to every message.
func With(l Logger, args ...any) Logger {
	return &argsLogger{l: l, args: args}
}

type argsLogger struct {
	l    Logger
	args []any
}

func (a *argsLogger) Debug(msg string, args ...any) { a.l.Debug(msg, a.with(args)...) }
func (a *argsLogger) Info(msg string, args ...any)  { a.l.Info(msg, a.with(args)...) }
func (a *argsLogger) Warn(msg string, args ...any)  { a.l.Warn(msg, a.with(args)...) }
func (a *argsLogger) Error(msg string, args ...any) { a.l.Error(msg, a.with(args)...) }

func (a *argsLogger) with(args []any) []any {
	return append(append(make([]any, 0, len(args)+len(a.args)), args...), a.args...)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
