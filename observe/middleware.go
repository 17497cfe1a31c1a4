package observe

import (
	"context"
	"time"
)

// CallResult describes how a memoized call was served.
type CallResult struct {
	Outcome  Outcome
	Slot     string        // slot path, when one was derived
	Computed bool          // the wrapped function ran
	Compute  time.Duration // time spent in the wrapped function
}

// CallFunc performs one memoized call.
type CallFunc func(ctx context.Context, meta FuncMeta) (CallResult, error)

// Middleware wraps memoized calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped call are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return LoggingMiddleware(&noopLogger{})
}

// LoggingMiddleware returns a Middleware that logs through logger and
// records no traces or metrics.
func LoggingMiddleware(logger Logger) *Middleware {
	return NewMiddleware(newNoopTracer(), &noopMetrics{}, logger)
}

// Logger returns the logger the middleware writes to.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps a CallFunc with tracing, metrics and logging.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta FuncMeta) (CallResult, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		res, err := fn(ctx, meta)
		if err != nil {
			res.Outcome = OutcomeError
		}

		m.tracer.EndSpan(span, res.Outcome, err)
		m.metrics.RecordCall(ctx, meta, res, err)

		log := m.logger.WithFunc(meta)
		fields := []Field{{Key: "outcome", Value: string(res.Outcome)}}
		if res.Slot != "" {
			fields = append(fields, Field{Key: "slot", Value: res.Slot})
		}
		if res.Computed {
			fields = append(fields, Field{Key: "duration_ms", Value: float64(res.Compute) / float64(time.Millisecond)})
		}

		switch {
		case err != nil:
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "memoized call failed", fields...)
		case res.Outcome == OutcomeHit:
			log.Debug(ctx, "memo hit", fields...)
		default:
			log.Debug(ctx, "memo stored", fields...)
		}

		return res, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
