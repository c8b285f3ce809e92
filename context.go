package agent

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	LoggerContextKey   ContextKey = "logger"
	ThreadIDContextKey ContextKey = "thread_id"
	RunIDContextKey    ContextKey = "run_id"
)

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, ThreadIDContextKey, threadID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

func GetLoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(LoggerContextKey).(*slog.Logger)
	return logger, ok
}

func GetThreadIDFromContext(ctx context.Context) (string, bool) {
	threadID, ok := ctx.Value(ThreadIDContextKey).(string)
	return threadID, ok
}

func GetRunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(RunIDContextKey).(string)
	return runID, ok
}

// LoggerFromContext returns the logger stored in ctx, or a discard logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := GetLoggerFromContext(ctx); ok && logger != nil {
		return logger
	}
	return NewDiscardLogger()
}
