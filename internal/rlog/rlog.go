// Package rlog wraps go.uber.org/zap behind a small Logger interface
// instead of the concrete *zap.Logger, plus a CapturePanic helper used at
// the top of the admission-loop and pub/sub delivery goroutines, the same
// guard pattern any errgroup.Group.Go closure needs around its own
// goroutines.
package rlog

import "go.uber.org/zap"

// Logger is the logging seam used across the coordinator. Applications may
// supply their own implementation (logging is an explicit external
// collaborator); NewZap and NewNop cover construction from a *zap.Logger and
// for tests, respectively.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
}

type zapLogger struct {
	l *zap.Logger
}

// NewZap adapts a *zap.Logger to Logger.
func NewZap(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

// NewNop returns a Logger that discards everything, for tests and for
// embedding applications that have not wired a logger yet.
func NewNop() Logger { return &zapLogger{l: zap.NewNop()} }

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...zap.Field) Logger       { return &zapLogger{l: z.l.With(fields...)} }

// CapturePanic recovers a panic captured by the caller's `defer func() {
// CapturePanic(recover(), logger, fields) }()` and logs it instead of
// crashing the process. The admission loops and pub/sub delivery
// goroutines are wrapped this way; the heartbeat and health-check
// goroutines are not.
func CapturePanic(recovered any, logger Logger, fields []zap.Field) {
	if recovered == nil {
		return
	}
	if logger == nil {
		logger = NewNop()
	}
	logger.Error("recovered panic", append(fields, zap.Any("panic", recovered))...)
}
