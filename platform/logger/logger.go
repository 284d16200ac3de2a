// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

// RequestIDKey holds the request id set by httpkit.RequestID.
const RequestIDKey contextKey = "request_id"

// Logger wraps slog.Logger with the pipeline's recurring log shapes.
type Logger struct {
	*slog.Logger
}

// New returns a JSON logger, or a debug-level text logger when env is "development".
func New(env string) *Logger {
	if strings.EqualFold(env, "development") {
		return NewWriter(os.Stdout)
	}
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// NewWriter creates a debug-level text logger writing to w.
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

// Discard drops every record. Tests use it.
func Discard() *Logger {
	return NewWriter(io.Discard)
}

// WithContext attaches the request id carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return l.WithRequestID(requestID)
	}
	return l
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.With(slog.String("request_id", requestID))}
}

// HTTPRequest is the access log line.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	l.Log(context.Background(), level, "http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// IngestEvent logs the terminal outcome of one inbound lead event.
// Duplicates are expected traffic and stay at debug level.
func (l *Logger) IngestEvent(path, externalLeadID, outcome, reason string) {
	attrs := []any{
		slog.String("path", path),
		slog.String("leadgen_id", externalLeadID),
		slog.String("outcome", outcome),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}

	switch outcome {
	case "skipped":
		l.Debug("lead_ingest", attrs...)
	case "rejected", "failed":
		l.Warn("lead_ingest", attrs...)
	default:
		l.Info("lead_ingest", attrs...)
	}
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
