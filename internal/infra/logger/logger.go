package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
)

// Options configures the process logger.
type Options struct {
	// Level is debug, info, warn or error. Empty falls back to LOG_LEVEL.
	Level string
	// Format is "json" (default) or "text".
	Format string
	// OTel additionally ships records through the otelslog bridge.
	OTel bool
	// Writer defaults to stderr; stdout carries command output.
	Writer io.Writer
}

// New creates a JSON logger on stderr.
func New() *slog.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions creates the process logger and installs it as slog's default.
func NewWithOptions(opts Options) *slog.Logger {
	if opts.Level == "" {
		opts.Level = os.Getenv("LOG_LEVEL")
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	level := parseLevel(opts.Level)

	var handler slog.Handler = NewTraceContextHandler(newBaseHandler(opts.Writer, opts.Format, level))
	if opts.OTel {
		handler = NewMultiHandler(handler, otelslog.NewHandler(
			"ragbench",
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		))
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	l.Debug("logger_initialized", "otel_enabled", opts.OTel, "level", level.String())
	return l
}

func newBaseHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	ho := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.NewTextHandler(w, ho)
	}
	return slog.NewJSONHandler(w, ho)
}

// MultiHandler sends logs to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler fans records out to every handler.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			_ = handler.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}
