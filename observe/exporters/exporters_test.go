package exporters

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestTracingExporter_Names(t *testing.T) {
	var buf bytes.Buffer
	for _, name := range []string{"stdout", "none", ""} {
		exp, err := NewTracingExporter(context.Background(), name, &buf)
		if err != nil {
			t.Fatalf("NewTracingExporter(%q) error = %v", name, err)
		}
		if exp == nil {
			t.Fatalf("NewTracingExporter(%q) returned nil exporter", name)
		}
	}
}

func TestTracingExporter_Unknown(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "jaeger", nil)
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestTracingExporter_OTLPEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), "otlp", nil)
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("error = %v, want ErrEndpointNotConfigured", err)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")
	exp, err := NewTracingExporter(context.Background(), "otlp", nil)
	if err != nil {
		t.Fatalf("NewTracingExporter(otlp) error = %v", err)
	}
	_ = exp.Shutdown(context.Background())
}

func TestMetricsReader_Names(t *testing.T) {
	for _, name := range []string{"stdout", "none", "prometheus"} {
		reader, err := NewMetricsReader(context.Background(), name, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("NewMetricsReader(%q) error = %v", name, err)
		}
		if reader == nil {
			t.Fatalf("NewMetricsReader(%q) returned nil reader", name)
		}
	}
}

func TestMetricsReader_Errors(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewMetricsReader(context.Background(), "otlp", nil); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("otlp error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := NewMetricsReader(context.Background(), "statsd", nil); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("statsd error = %v, want ErrUnknownExporter", err)
	}
}
