package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome tells how a memoized call was served.
type Outcome string

const (
	// OutcomeHit means the result was read from its slot.
	OutcomeHit Outcome = "hit"
	// OutcomeMiss means the function ran and its result was stored.
	OutcomeMiss Outcome = "miss"
	// OutcomeError means the call failed before a result was returned.
	OutcomeError Outcome = "error"
)

// Metrics records memoization metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records one call. compute is the time spent in the wrapped
	// function and is only recorded when the function ran.
	RecordCall(ctx context.Context, meta FuncMeta, res CallResult, err error)
}

type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	hitCount     metric.Int64Counter
	missCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"memo.call.total",
		metric.WithDescription("Total number of memoized calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	hitCount, err := meter.Int64Counter(
		"memo.call.hits",
		metric.WithDescription("Calls served from a stored slot"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	missCount, err := meter.Int64Counter(
		"memo.call.misses",
		metric.WithDescription("Calls that ran the function and stored its result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"memo.call.errors",
		metric.WithDescription("Calls that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"memo.compute.duration_ms",
		metric.WithDescription("Time spent computing uncached results in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		hitCount:     hitCount,
		missCount:    missCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta FuncMeta, res CallResult, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("func.id", meta.ID()),
		attribute.String("func.name", meta.Name),
	}
	if meta.Module != "" {
		attrs = append(attrs, attribute.String("func.module", meta.Module))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	switch {
	case err != nil:
		m.errorCount.Add(ctx, 1, opt)
	case res.Outcome == OutcomeHit:
		m.hitCount.Add(ctx, 1, opt)
	case res.Outcome == OutcomeMiss:
		m.missCount.Add(ctx, 1, opt)
	}

	if res.Computed {
		m.durationHist.Record(ctx, float64(res.Compute)/float64(time.Millisecond), opt)
	}
}

type noopMetrics struct{}

func (m *noopMetrics) RecordCall(context.Context, FuncMeta, CallResult, error) {}
