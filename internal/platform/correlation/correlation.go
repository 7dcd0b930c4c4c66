// Package correlation tags units of work with short IDs so log lines from
// one scheduler cycle or HTTP request can be grouped. IDs travel via
// context; the slog handler wrapper injects them into every record.
package correlation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const attrKey = "correlation_id"

type contextKey struct{}

// NewID generates a short correlation ID.
func NewID() string {
	id := uuid.NewString()
	return strings.SplitN(id, "-", 2)[0]
}

// WithID returns a new context carrying the given correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// ID extracts the correlation ID from ctx, returning ("", false) if not present.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Handler decorates an slog.Handler so records emitted under a tagged
// context carry the correlation_id attribute.
type Handler struct {
	inner slog.Handler
}

// NewHandler creates a correlation-aware handler wrapping the given handler.
func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ID(ctx); ok {
		r.AddAttrs(slog.String(attrKey, id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
