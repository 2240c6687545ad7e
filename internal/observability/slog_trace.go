package observability

import (
	"context"
	"log/slog"

	"github.com/geocoder89/authgate/internal/actorctx"
	"go.opentelemetry.io/otel/trace"
)

// TraceHandler decorates records with correlation ids found on the context.
type TraceHandler struct {
	next slog.Handler
}

func NewTraceHandler(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(correlation(ctx)...)
	}

	return h.next.Handle(ctx, r)
}

// correlation returns the ids that tie a log line to its trace, request
// and signed-in user. Absent ids are left out rather than logged empty.
func correlation(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
			slog.Bool("trace_sampled", sc.IsSampled()),
		)
	}

	if id, ok := actorctx.RequestIDFrom(ctx); ok {
		attrs = append(attrs, slog.String("request_id", id))
	}

	if id, ok := actorctx.UserIDFrom(ctx); ok {
		attrs = append(attrs, slog.String("user_id", id))
	}

	return attrs
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{next: h.next.WithGroup(name)}
}
