// Package logger wraps logrus with the service's logging conventions.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	Service string
	Level   string // debug, info, warn, error
	Format  string // json or text
	Output  io.Writer
}

// Logger is a thin wrapper over logrus carrying the owning service name.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger from the given config.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{Logger: l, service: cfg.Service}
}

// NewDefault creates an info-level JSON logger for the named component.
func NewDefault(service string) *Logger {
	return New(LoggingConfig{Service: service, Level: "info", Format: "json"})
}

// Service returns the component name this logger was created for.
func (l *Logger) Service() string { return l.service }

// WithFields returns an entry tagged with the service name plus the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return entry
}

// WithError returns an entry carrying the error and service name.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// LogRequest emits the canonical per-request access log line.
func (l *Logger) LogRequest(requestID, method, path string, status int, duration time.Duration, fields map[string]interface{}) {
	entry := l.WithFields(map[string]interface{}{
		"request_id":  requestID,
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": float64(duration.Microseconds()) / 1000.0,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}

	switch {
	case status >= 500:
		entry.Error("request completed")
	case status >= 400:
		entry.Warn("request completed")
	default:
		entry.Info("request completed")
	}
}
