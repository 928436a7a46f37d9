package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// OrgIDKey is the context key for the owning organization
	OrgIDKey ContextKey = "org_id"
	// ClaimIDKey is the context key for the claim being worked on
	ClaimIDKey ContextKey = "claim_id"
	// RailKey is the context key for the adjudication rail
	RailKey ContextKey = "rail"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// Init initializes the global slog logger with the given configuration
func Init(cfg *Config) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithContext returns a logger with context values extracted
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok && orgID != "" {
		logger = logger.With("org_id", orgID)
	}
	if claimID, ok := ctx.Value(ClaimIDKey).(string); ok && claimID != "" {
		logger = logger.With("claim_id", claimID)
	}
	if rail, ok := ctx.Value(RailKey).(string); ok && rail != "" {
		logger = logger.With("rail", rail)
	}

	return logger
}

// WithClaim stores claim-scoped fields in the context so later log
// calls carry them automatically.
func WithClaim(ctx context.Context, claimID, rail string) context.Context {
	ctx = context.WithValue(ctx, ClaimIDKey, claimID)
	if rail != "" {
		ctx = context.WithValue(ctx, RailKey, rail)
	}
	return ctx
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
