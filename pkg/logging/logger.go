// Package logging builds the zap loggers used across the pipeline, tagging
// lifecycle and error lines the way the on-disk engine's stderr output does.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKeyType string

const loggerKey loggerKeyType = "mosaic.logger"

// LifecyclePrefix and ErrorPrefix match spec.md §7 ("Stderr tagged [SG-LOG]
// for lifecycle events, [SG-ERR] for errors").
const (
	LifecyclePrefix = "[SG-LOG]"
	ErrorPrefix     = "[SG-ERR]"
)

var base *zap.SugaredLogger

func init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	base = l.Sugar()
}

// NewLogger returns the process-wide sugared logger.
func NewLogger() *zap.SugaredLogger {
	return base
}

// WithContext attaches a logger to ctx so downstream components can fetch it
// with FromContext without threading it through every constructor.
func WithContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stashed on ctx, or the package default.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if log, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok {
		return log
	}
	return base
}

// Lifecycle logs a lifecycle event tagged per spec.md §7.
func Lifecycle(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	log.Infow(LifecyclePrefix+" "+msg, kv...)
}

// Fatal logs a fatal pipeline error tagged per spec.md §7. It does not call
// os.Exit; callers decide how to propagate the fatal condition.
func Fatal(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	log.Errorw(ErrorPrefix+" "+msg, kv...)
}
