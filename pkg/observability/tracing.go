// Package observability wires OpenTelemetry tracing for seaflow jobs
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/seaflow"

// Config contains tracing configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Exporter is "stdout" or "none"
	Exporter     string
	SamplingRate float64
	// Output receives stdout spans; defaults to os.Stdout
	Output       io.Writer
	BatchTimeout time.Duration
}

// DefaultConfig returns a config that samples nothing and exports nowhere
func DefaultConfig() Config {
	return Config{
		ServiceName:    "seaflow",
		ServiceVersion: "dev",
		Exporter:       "none",
		SamplingRate:   1.0,
		BatchTimeout:   time.Second,
	}
}

// Init installs a global tracer provider. The returned function flushes and
// shuts it down.
func Init(cfg Config) (func(context.Context) error, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the seaflow tracer of the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps an OpenTelemetry span
type Span struct {
	span trace.Span
}

// StartSpan starts a span named operation as a child of ctx
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operation, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// End finishes the span, marking it failed when err is non-nil
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
