// Package logging wraps log/slog with the handlers and helpers shared by the
// service and the command-line tools.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type loggerKey struct{}

// NewStructuredLogger returns a JSON logger writing to w.
func NewStructuredLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger returns a human-readable logger, used by the CLIs on stderr.
func NewTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogError logs err under message at error level. A nil logger is a no-op.
func LogError(logger *slog.Logger, message string, err error, attrs ...slog.Attr) {
	if logger == nil || err == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	logger.Error(message, args...)
}

// LogOperation logs a completed operation at info level. Zero durations
// are dropped.
func LogOperation(logger *slog.Logger, operation string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "duration" && attr.Value.Kind() == slog.KindDuration && attr.Value.Duration() == 0 {
			continue
		}
		args = append(args, attr)
	}
	logger.Info(operation, args...)
}

// SafeClose closes c and logs a failure instead of returning it.
func SafeClose(c io.Closer, logger *slog.Logger, operation string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close resource", err, slog.String("operation", operation))
	}
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or fallback when
// there is none. A nil fallback means slog.Default().
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
