package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	fallbackSampleRatio   = 0.1
	defaultExportTimeout  = 10 * time.Second
	serviceNameAttribute  = "service.name"
	serviceVersionAttrKey = "service.version"
)

// ShutdownFunc flushes pending spans and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// TracingConfig describes the OTLP export for studio spans.
type TracingConfig struct {
	Enabled     bool
	Service     string
	Version     string
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	SampleRatio float64
	Timeout     time.Duration
}

func (c TracingConfig) sampleRatio() float64 {
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		return fallbackSampleRatio
	}
	return c.SampleRatio
}

func (c TracingConfig) exporterOptions() []otlptracegrpc.Option {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultExportTimeout
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithTimeout(timeout)}
	if c.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(c.Endpoint))
	}
	if c.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(c.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(c.Headers))
	}
	return opts
}

func (c TracingConfig) resource(ctx context.Context) *resource.Resource {
	attrs := []attribute.KeyValue{attribute.String(serviceNameAttribute, c.Service)}
	if c.Version != "" {
		attrs = append(attrs, attribute.String(serviceVersionAttrKey, c.Version))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		zap.L().Warn("Build tracing resource failed, falling back to default", zap.Error(err))
		return resource.Default()
	}
	return res
}

// SetupTracing always installs the W3C trace-context and baggage propagators
// so inbound trace headers survive even without an exporter. With tracing
// disabled the returned ShutdownFunc does nothing.
func SetupTracing(ctx context.Context, cfg TracingConfig) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Service == "" {
		return nil, errors.New("tracing: service name is required")
	}

	exporter, err := otlptracegrpc.New(ctx, cfg.exporterOptions()...)
	if err != nil {
		return nil, fmt.Errorf("tracing: create OTLP exporter: %w", err)
	}

	ratio := cfg.sampleRatio()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(cfg.resource(ctx)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)

	zap.L().Info("Tracing enabled",
		zap.String("service", cfg.Service),
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sample_ratio", ratio),
	)
	return provider.Shutdown, nil
}
