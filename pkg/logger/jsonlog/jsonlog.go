// Package jsonlog is a logger backend writing JSON lines through zap, for
// deployments that ship logs to a collector.
package jsonlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type JSONLogger struct {
	sugar *zap.SugaredLogger
}

type JSONLoggerParams struct {
	Debug bool
	// Service is attached to every entry as "service".
	Service string
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

func NewJSONLogger(params JSONLoggerParams) (*JSONLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if params.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if len(params.OutputPaths) > 0 {
		cfg.OutputPaths = params.OutputPaths
	}

	base, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}
	if params.Service != "" {
		base = base.With(zap.String("service", params.Service))
	}
	return &JSONLogger{sugar: base.Sugar()}, nil
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *JSONLogger {
	return &JSONLogger{sugar: l.Sugar()}
}

func (j *JSONLogger) Log(message string, keyvals ...any) {
	j.sugar.Infow(message, keyvals...)
}

func (j *JSONLogger) Debug(message string, keyvals ...any) {
	j.sugar.Debugw(message, keyvals...)
}

func (j *JSONLogger) Info(message string, keyvals ...any) {
	j.sugar.Infow(message, keyvals...)
}

func (j *JSONLogger) Warn(message string, keyvals ...any) {
	j.sugar.Warnw(message, keyvals...)
}

func (j *JSONLogger) Error(message string, keyvals ...any) {
	j.sugar.Errorw(message, keyvals...)
}

func (j *JSONLogger) Fatal(message string, keyvals ...any) {
	j.sugar.Fatalw(message, keyvals...)
}

func (j *JSONLogger) Sync() error {
	return j.sugar.Sync()
}
