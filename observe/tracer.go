package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// FuncMeta identifies a memoized function for telemetry purposes.
type FuncMeta struct {
	Module string // Go package path (may be empty)
	Name   string // Function name within the package (required)
	Root   string // Cache root the function stores under (optional)
}

// SpanName returns the deterministic span name for this function.
// Format: memo.call.<module>.<name> or memo.call.<name>
func (m FuncMeta) SpanName() string {
	return "memo.call." + m.ID()
}

// ID returns the fully qualified function identifier.
func (m FuncMeta) ID() string {
	if m.Module != "" {
		return m.Module + "." + m.Name
	}
	return m.Name
}

// Validate reports whether the metadata can label telemetry.
func (m FuncMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingFuncName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with per-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a memoized call.
	StartSpan(ctx context.Context, meta FuncMeta) (context.Context, trace.Span)

	// EndSpan records how the call was served and ends the span.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with function metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta FuncMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("func.id", meta.ID()),
		attribute.String("func.name", meta.Name),
	}
	if meta.Module != "" {
		attrs = append(attrs, attribute.String("func.module", meta.Module))
	}
	if meta.Root != "" {
		attrs = append(attrs, attribute.String("memo.root", meta.Root))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan sets memo.outcome and the error status, then ends the span.
func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("memo.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta FuncMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Outcome, _ error) {
	span.End()
}
