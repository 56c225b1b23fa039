package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"
)

// TracingHandler is an [slog.Handler] that adds the trace_id and span_id of
// the span active in the record's context at the top level of the record,
// outside any group opened with WithGroup. Service metadata is attached once
// at construction.
type TracingHandler struct {
	base slog.Handler
	// ops replays WithAttrs and WithGroup calls, in order, on top of base
	// once the trace attributes are in place.
	ops []handlerOp
}

// handlerOp is one WithGroup (group set) or WithAttrs (attrs set) call.
type handlerOp struct {
	group string
	attrs []slog.Attr
}

// NewTracingHandler wraps inner with trace correlation and service metadata.
// Empty env and mode are omitted.
func NewTracingHandler(inner slog.Handler, service, env string, mode AppMode) *TracingHandler {
	attrs := []slog.Attr{slog.String(attrService, service)}

	if mode != "" {
		attrs = append(attrs, slog.String(attrMode, string(mode)))
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{base: inner.WithAttrs(attrs)}
}

// Enabled delegates to the base handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.base.Enabled(ctx, level)
}

// Handle builds the handler chain for ctx and delegates the record to it.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	handler := th.base

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		})
	}

	for _, op := range th.ops {
		if op.group != "" {
			handler = handler.WithGroup(op.group)
		} else {
			handler = handler.WithAttrs(op.attrs)
		}
	}

	err := handler.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a TracingHandler that also applies attrs.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return th
	}

	return th.with(handlerOp{attrs: attrs})
}

// WithGroup returns a TracingHandler that nests later attributes under name.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return th
	}

	return th.with(handlerOp{group: name})
}

func (th *TracingHandler) with(op handlerOp) *TracingHandler {
	ops := make([]handlerOp, len(th.ops), len(th.ops)+1)
	copy(ops, th.ops)

	return &TracingHandler{base: th.base, ops: append(ops, op)}
}
