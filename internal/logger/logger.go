// Package logger wraps log/slog with the fields every service line carries:
// service, hostname and an action name describing what was being done.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

// New returns a JSON logger writing to stdout.  level is one of debug,
// info, warn or error; anything else means info.
func New(service, level string) *Logger {
	return NewWithWriter(service, os.Stdout, parseLevel(level))
}

// NewWithWriter is New with an explicit destination, used by tests and by
// the kitchen consumer.
func NewWithWriter(service string, w io.Writer, level slog.Level) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return NewWithWriter("discard", io.Discard, slog.LevelError+1) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (l *Logger) Debug(action, msg string, args ...any) { l.log(slog.LevelDebug, action, msg, nil, args) }
func (l *Logger) Info(action, msg string, args ...any)  { l.log(slog.LevelInfo, action, msg, nil, args) }
func (l *Logger) Warn(action, msg string, args ...any)  { l.log(slog.LevelWarn, action, msg, nil, args) }

func (l *Logger) Error(action, msg string, err error, args ...any) {
	l.log(slog.LevelError, action, msg, err, args)
}

func (l *Logger) log(level slog.Level, action, msg string, err error, args []any) {
	if l == nil {
		return
	}
	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs,
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
	)
	if err != nil {
		attrs = append(attrs, slog.Group("error", slog.String("msg", err.Error())))
	}
	attrs = append(attrs, args...)
	l.handler.Log(context.Background(), level, msg, attrs...)
}
