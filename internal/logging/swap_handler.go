package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// swapHandler delegates to a handler chain that Initialize can replace
// after loggers have been handed out.
type swapHandler struct {
	level   *slog.LevelVar
	current *atomic.Pointer[slog.Handler]
	derive  []func(slog.Handler) slog.Handler // With/WithGroup calls, replayed on the current chain
}

func newSwapHandler(level *slog.LevelVar, h slog.Handler) *swapHandler {
	sh := &swapHandler{level: level, current: &atomic.Pointer[slog.Handler]{}}
	sh.swap(h)
	return sh
}

func (h *swapHandler) swap(next slog.Handler) {
	h.current.Store(&next)
}

func (h *swapHandler) handler() slog.Handler {
	inner := *h.current.Load()
	for _, fn := range h.derive {
		inner = fn(inner)
	}
	return inner
}

func (h *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.current.Load()).Enabled(ctx, level)
}

func (h *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler().Handle(ctx, r)
}

func (h *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *swapHandler) WithGroup(name string) slog.Handler {
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *swapHandler) with(fn func(slog.Handler) slog.Handler) *swapHandler {
	derive := make([]func(slog.Handler) slog.Handler, len(h.derive), len(h.derive)+1)
	copy(derive, h.derive)
	return &swapHandler{level: h.level, current: h.current, derive: append(derive, fn)}
}
