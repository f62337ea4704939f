// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// DialogIDKey is the context key for the dialog being processed
	DialogIDKey contextKey = "dialog_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and dialog_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("request_id", requestID)),
		}
	}

	if dialogID, ok := ctx.Value(DialogIDKey).(string); ok && dialogID != "" {
		newLogger = newLogger.WithDialogID(dialogID)
	}

	return newLogger
}

// WithRequestID stores a request ID in the context for WithContext extraction.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithDialog stores a dialog ID in the context for WithContext extraction.
func WithDialog(ctx context.Context, dialogID string) context.Context {
	return context.WithValue(ctx, DialogIDKey, dialogID)
}

// WithDialogID returns a logger with the dialog ID attached.
func (l *Logger) WithDialogID(dialogID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("dialog_id", dialogID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// LockDegraded logs a distributed-lock degradation. Degradation is an
// accepted availability tradeoff, so this is a warning, never an error.
func (l *Logger) LockDegraded(scope, key, reason string) {
	l.Warn("lock_degraded",
		slog.String("scope", scope),
		slog.String("key", key),
		slog.String("reason", reason),
	)
}

// BackendError logs a lock/session backend failure that was recovered locally.
func (l *Logger) BackendError(operation string, err error) {
	l.Warn("backend_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ShadowDivergence logs a shadow-evaluation divergence. Observability only:
// the actual route is never affected by shadow output.
func (l *Logger) ShadowDivergence(dialogID, actualRoute, shadowRoute string) {
	l.Warn("shadow_divergence",
		slog.String("dialog_id", dialogID),
		slog.String("actual_route", actualRoute),
		slog.String("shadow_route", shadowRoute),
	)
}

// StaleMessage logs a message dropped by the stale-message guard.
func (l *Logger) StaleMessage(dialogID string, messageID, lastProcessedID int64) {
	l.Warn("stale_message_ignored",
		slog.String("dialog_id", dialogID),
		slog.Int64("message_id", messageID),
		slog.Int64("last_processed_id", lastProcessedID),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
