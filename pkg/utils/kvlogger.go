package utils

import "go.uber.org/zap"

// KVLogger adapts zap.Logger to the minimal key/value Logger interfaces
// declared by the application layer packages.
type KVLogger struct {
	base *zap.SugaredLogger
}

// NewKVLogger wraps a zap logger
func NewKVLogger(logger *zap.Logger) *KVLogger {
	return &KVLogger{base: logger.Sugar()}
}

// Info logs at info level with loosely typed key-value pairs
func (l *KVLogger) Info(msg string, keysAndValues ...interface{}) {
	l.base.Infow(msg, keysAndValues...)
}

// Error logs at error level with loosely typed key-value pairs
func (l *KVLogger) Error(msg string, keysAndValues ...interface{}) {
	l.base.Errorw(msg, keysAndValues...)
}
