// Package tracing wires OpenTelemetry spans around the dispatch pipeline
// stages, adapted from the platform's standard GPU-context span enrichment.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

// Config controls whether and where spans are exported.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SamplingRate   float64
}

// Init initializes the process-wide tracer provider. Returns a no-op
// shutdown function when tracing is disabled.
func Init(ctx context.Context, config Config) (func(), error) {
	if !config.Enabled {
		return func() {}, nil
	}

	logger := klog.NewKlogr().WithName("tracing")
	logger.Info("initializing OpenTelemetry tracing", "endpoint", config.OTLPEndpoint)

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(config.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SamplingRate)),
	)
	otel.SetTracerProvider(tp)

	return func() {
		logger.Info("shutting down tracing")
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error(err, "failed to shut down tracer provider")
		}
	}, nil
}

// StartSpan starts a new span under the gpu-delegater tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("gpu-delegater").Start(ctx, spanName, opts...)
}

// DispatchContext carries the dispatch-decision attributes attached to a
// request's span once a Selection has been made.
type DispatchContext struct {
	NodeName     string
	GPUCount     int
	DisplayName  string
	RequiredMiB  int
	TotalFreeMiB int
}

// EnrichWithDispatchContext attaches dispatch attributes to a span.
func EnrichWithDispatchContext(span trace.Span, d DispatchContext) {
	span.SetAttributes(
		attribute.String("dispatch.node", d.NodeName),
		attribute.Int("dispatch.gpu_count", d.GPUCount),
		attribute.String("dispatch.gpu_model", d.DisplayName),
		attribute.Int("dispatch.required_mib", d.RequiredMiB),
		attribute.Int("dispatch.total_free_mib", d.TotalFreeMiB),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
