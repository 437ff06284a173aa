package notify

import (
	"context"
)

// Notifier delivers a text message to a user. Delivery is best effort:
// callers log a returned error and carry on.
type Notifier interface {
	Notify(ctx context.Context, addressee, message string) error
}

// Logger defines the logging interface used by notifiers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Log writes notifications to the log instead of sending them. It is used
// when no chat transport is configured.
type Log struct {
	logger Logger
}

// NewLog creates a notifier logging through logger.
func NewLog(logger Logger) *Log {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Log{logger: logger}
}

// Notify logs the message.
func (l *Log) Notify(_ context.Context, addressee, message string) error {
	if addressee == "" {
		return ErrNoAddressee
	}
	l.logger.Info("user notification", "addressee", addressee, "message", message)
	return nil
}
