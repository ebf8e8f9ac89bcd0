// Package logger provides a small structured-logging facade over
// charmbracelet/log, threaded through context.Context the way the rest of
// the engine threads request-scoped values.
package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is the engine's provider-agnostic log level.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel converts the engine level to the charmbracelet/log level,
// defaulting unknown values to InfoLevel.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Logger is the interface the engine depends on. It is satisfied by
// *charmLogger below and by any test double.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	inner *charmlog.Logger
}

// Config controls how NewLogger builds the underlying writer/level.
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// TestConfig returns a quiet configuration suitable for unit tests.
func TestConfig() Config {
	return Config{Level: DisabledLevel, Output: io.Discard}
}

// NewLogger builds a Logger from Config.
func NewLogger(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           cfg.Level.ToCharmlogLevel(),
		ReportTimestamp: true,
	})
	return &charmLogger{inner: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.inner.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.inner.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.inner.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.inner.Error(msg, keyvals...) }
func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{inner: c.inner.With(keyvals...)}
}

type ctxKey struct{}

// LoggerCtxKey is the context key under which the active Logger is stored.
var LoggerCtxKey = ctxKey{}

var defaultLogger = NewLogger(Config{Level: InfoLevel})

// ContextWithLogger returns a new context carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the Logger stored in ctx, or the package's info-level
// default logger when none is present or the stored value is nil/invalid.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return defaultLogger
	}
	v := ctx.Value(LoggerCtxKey)
	if v == nil {
		return defaultLogger
	}
	l, ok := v.(Logger)
	if !ok || l == nil {
		return defaultLogger
	}
	return l
}
