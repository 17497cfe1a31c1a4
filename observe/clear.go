package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ClearSpanName names the span around one cache clear.
const ClearSpanName = "memo.clear"

// ClearStats summarizes one cache clear.
type ClearStats struct {
	Root   string
	Files  int
	Bytes  uint64
	DryRun bool
}

// ClearFunc performs a clear and reports what it removed.
type ClearFunc func(ctx context.Context) (ClearStats, error)

// ObserveClear runs fn inside a [ClearSpanName] span. Removed files and bytes
// are added to the memo.clear.files and memo.clear.bytes counters unless the
// clear was a dry run.
func ObserveClear(ctx context.Context, obs Observer, fn ClearFunc) (ClearStats, error) {
	if obs == nil {
		return fn(ctx)
	}

	ctx, span := obs.Tracer().Start(ctx, ClearSpanName, trace.WithSpanKind(trace.SpanKindInternal))
	stats, err := fn(ctx)

	attrs := []attribute.KeyValue{
		attribute.String("memo.root", stats.Root),
		attribute.Bool("memo.dry_run", stats.DryRun),
	}
	span.SetAttributes(append(attrs,
		attribute.Int("memo.clear.files", stats.Files),
		attribute.Int64("memo.clear.bytes", int64(stats.Bytes)),
	)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	if stats.DryRun {
		return stats, err
	}
	files, ferr := obs.Meter().Int64Counter("memo.clear.files",
		metric.WithDescription("Slot files removed by cache clears"),
		metric.WithUnit("{file}"),
	)
	size, berr := obs.Meter().Int64Counter("memo.clear.bytes",
		metric.WithDescription("Bytes removed by cache clears"),
		metric.WithUnit("By"),
	)
	if ierr := errors.Join(ferr, berr); ierr != nil {
		return stats, errors.Join(err, ierr)
	}
	set := metric.WithAttributes(attrs[0])
	files.Add(ctx, int64(stats.Files), set)
	size.Add(ctx, int64(stats.Bytes), set)
	return stats, err
}
