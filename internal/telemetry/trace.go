package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the OTLP/HTTP span exporter.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// Tracer wraps an OpenTelemetry tracer provider scoped to one fuzzing
// session, emitting one span per fuzz_one iteration.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer exporting spans over OTLP/HTTP to cfg.Endpoint.
func NewTracer(ctx context.Context, cfg TracingConfig) (*Tracer, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("protofuzz/fuzzer"),
	}, nil
}

// StartFuzzOne opens a span covering one scheduler turn over current,
// tagged with the queue index and message count being mutated.
func (t *Tracer) StartFuzzOne(ctx context.Context, queueIdx, messageCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "fuzz_one",
		trace.WithAttributes(
			attribute.Int("protofuzz.queue_index", queueIdx),
			attribute.Int("protofuzz.message_count", messageCount),
		),
	)
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
