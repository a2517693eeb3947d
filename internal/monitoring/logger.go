// Package monitoring owns the process logger and the three logging streams
// used across the decision core:
//
//	ops   actionable warnings, errors, fail-safe engagements   (zap Warn)
//	diag  day-to-day diagnostics, decisions, configuration     (zap Info)
//	trace high-frequency per-object and per-tick telemetry     (zap Debug)
//
// There is deliberately no Debugf; pick one of the three streams.
package monitoring

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

// Logger returns the process logger.
func Logger() *zap.Logger {
	return current.Load()
}

// NewLogger builds a logger. format is "json" (production encoder) or
// "console" (development encoder); level is a zap level name.
func NewLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console", "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Streams logs on behalf of one component. It resolves the process logger on
// every call, so a SetLogger after package init still takes effect.
type Streams struct {
	component string
}

// Component returns the streams for a named component.
func Component(name string) Streams {
	return Streams{component: name}
}

func (s Streams) sugar() *zap.SugaredLogger {
	return current.Load().With(zap.String("component", s.component)).Sugar()
}

// Opsf logs to the ops stream.
func (s Streams) Opsf(format string, args ...interface{}) {
	s.sugar().Warnf(format, args...)
}

// Diagf logs to the diag stream.
func (s Streams) Diagf(format string, args ...interface{}) {
	s.sugar().Infof(format, args...)
}

// Tracef logs to the trace stream. Skipped cheaply when debug is disabled.
func (s Streams) Tracef(format string, args ...interface{}) {
	l := current.Load()
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	s.sugar().Debugf(format, args...)
}
