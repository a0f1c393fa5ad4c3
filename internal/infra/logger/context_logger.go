package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

// Business context keys. Records logged with a *Context method pick these up
// through TraceContextHandler.
const (
	RunIDKey     ContextKey = "ragbench.run.id"
	ItemIDKey    ContextKey = "ragbench.item.id"
	StageKey     ContextKey = "ragbench.stage"
	SweepCellKey ContextKey = "ragbench.sweep.cell"
)

var contextKeys = []ContextKey{RunIDKey, ItemIDKey, StageKey, SweepCellKey}

// WithRunID adds the run ID to ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithItemID adds the benchmark item ID to ctx.
func WithItemID(ctx context.Context, itemID string) context.Context {
	return context.WithValue(ctx, ItemIDKey, itemID)
}

// WithStage adds the pipeline stage to ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithSweepCell adds the sweep cell key (e.g. "0.30/0.20") to ctx.
func WithSweepCell(ctx context.Context, cell string) context.Context {
	return context.WithValue(ctx, SweepCellKey, cell)
}

// ContextAttrs returns the business keys present in ctx.
func ContextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, k := range contextKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(k), v))
		}
	}
	return attrs
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
