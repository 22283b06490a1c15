package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one completed API call
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 500:
		OrGlobal(l).ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		OrGlobal(l).WarnWithFields("HTTP request client error", fields)
	default:
		OrGlobal(l).DebugWithFields("HTTP request completed", fields)
	}
}

// LogAttachment logs the outcome of materializing one attachment
func LogAttachment(l Logger, dir, file string, bytes int, err error) {
	log := OrGlobal(l).WithFields(map[string]interface{}{
		"dir":   dir,
		"file":  file,
		"bytes": bytes,
	})

	switch {
	case err != nil:
		log.WithError(err).Error("Attachment write failed")
	case file == "":
		log.Debug("Attachment body empty, nothing written")
	default:
		log.Info("Attachment written")
	}
}

// LogQuotaExhausted logs the point where the remote daily quota ran out
func LogQuotaExhausted(l Logger, source string) {
	OrGlobal(l).WithFields(map[string]interface{}{
		"source": source,
		"action": "abort",
	}).Error("Daily request quota exhausted, stopping all work")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	log := OrGlobal(l).WithField("component", component)
	if len(config) > 0 {
		log = log.WithFields(config)
	}
	log.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	OrGlobal(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs run counters
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	OrGlobal(l).InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
