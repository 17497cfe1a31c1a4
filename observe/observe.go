package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/persistcache/observe/exporters"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "persistcache"

const instrumentationName = "github.com/jonwraymond/persistcache"

// Config selects the telemetry emitted for memoized calls and cache clears.
// The zero value emits nothing.
type Config struct {
	ServiceName string
	Version     string

	// Traces is otlp|stdout|none; empty disables tracing.
	Traces string
	// Metrics is otlp|prometheus|stdout|none; empty disables metrics.
	Metrics string
	// SampleRate is the fraction of calls traced. Zero traces every call.
	SampleRate float64
	// LogLevel is debug|info|warn|error; empty disables logging.
	LogLevel string

	// Output receives stdout exporter data, default os.Stdout.
	Output io.Writer
	// LogOutput receives log lines, default os.Stderr.
	LogOutput io.Writer
}

// Enabled reports whether c emits any telemetry.
func (c Config) Enabled() bool {
	return c.tracing() || c.metrics() || c.LogLevel != ""
}

func (c Config) tracing() bool { return c.Traces != "" && c.Traces != "none" }
func (c Config) metrics() bool { return c.Metrics != "" && c.Metrics != "none" }

func (c Config) serviceName() string {
	if c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRate <= 0 || c.SampleRate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(c.SampleRate)
}

// Validate reports the first unknown exporter, level or out of range rate.
func (c Config) Validate() error {
	switch c.Traces {
	case "", "none", "otlp", "stdout":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Traces)
	}
	switch c.Metrics {
	case "", "none", "otlp", "prometheus", "stdout":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidSampleRate, c.SampleRate)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return nil
}

// Observer provides access to telemetry primitives.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown flushes pending spans and metrics and returns every
// provider's error joined.
type Observer interface {
	// Tracer returns the configured tracer.
	Tracer() trace.Tracer

	// Meter returns the configured meter.
	Meter() metric.Meter

	// Logger returns the configured logger.
	Logger() Logger

	// Shutdown flushes and stops all telemetry providers.
	Shutdown(ctx context.Context) error
}

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	WithFunc(meta FuncMeta) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider

	mu      sync.Mutex
	closers []func(context.Context) error
}

// NewObserver builds the providers cfg enables. Disabled signals get no-op
// implementations. The SDK providers are also installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:  noop.NewMeterProvider().Meter(instrumentationName),
		logger: NopLogger(),
	}

	if cfg.tracing() || cfg.metrics() {
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceName(cfg.serviceName()),
			semconv.ServiceVersion(cfg.Version),
		))
		if err != nil {
			return nil, fmt.Errorf("observe: resource: %w", err)
		}

		if cfg.tracing() {
			exp, err := exporters.NewTracingExporter(ctx, cfg.Traces, cfg.Output)
			if err != nil {
				return nil, fmt.Errorf("observe: traces: %w", err)
			}
			obs.tp = sdktrace.NewTracerProvider(
				sdktrace.WithResource(res),
				sdktrace.WithSampler(cfg.sampler()),
				sdktrace.WithBatcher(exp),
			)
			otel.SetTracerProvider(obs.tp)
			obs.tracer = obs.tp.Tracer(instrumentationName)
			obs.closers = append(obs.closers, obs.tp.Shutdown)
		}

		if cfg.metrics() {
			reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics, cfg.Output)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("observe: metrics: %w", err), obs.Shutdown(ctx))
			}
			obs.mp = sdkmetric.NewMeterProvider(
				sdkmetric.WithResource(res),
				sdkmetric.WithReader(reader),
			)
			otel.SetMeterProvider(obs.mp)
			obs.meter = obs.mp.Meter(instrumentationName)
			obs.closers = append(obs.closers, obs.mp.Shutdown)
		}
	}

	if cfg.LogLevel != "" {
		w := cfg.LogOutput
		if w == nil {
			w = os.Stderr
		}
		obs.logger = NewLoggerWithWriter(cfg.LogLevel, w)
	}

	return obs, nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	closers := o.closers
	o.closers = nil
	o.mu.Unlock()

	var errs []error
	for _, closeFn := range closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("observe: shutdown: %w", errors.Join(errs...))
	}
	return nil
}

type noopLogger struct{}

func (l *noopLogger) Info(ctx context.Context, msg string, fields ...Field)  {}
func (l *noopLogger) Warn(ctx context.Context, msg string, fields ...Field)  {}
func (l *noopLogger) Error(ctx context.Context, msg string, fields ...Field) {}
func (l *noopLogger) Debug(ctx context.Context, msg string, fields ...Field) {}
func (l *noopLogger) WithFunc(meta FuncMeta) Logger                          { return l }

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return &noopLogger{} }
