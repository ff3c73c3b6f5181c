// Package telemetry exports OpenTelemetry traces over OTLP/gRPC. Tracing
// is off unless an endpoint is configured; spans created by the HTTP
// router, the token verifier and the database client are then batched to
// the collector.
package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// Config selects the OTLP collector.
type Config struct {
	// Endpoint is the collector's host:port. Empty disables tracing.
	Endpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Insecure disables TLS to the collector.
	Insecure bool `json:"otlp_insecure" yaml:"otlp_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// Setup installs a global tracer provider exporting to cfg.Endpoint and
// the W3C trace context propagator. It returns nil when tracing is
// disabled. The caller shuts the provider down to flush pending spans.
func Setup(ctx context.Context, cfg Config, service, version string) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(strings.TrimSpace(cfg.Endpoint))}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "telemetry: failed to create trace exporter")
	}
	res, err := NewResource(ctx, service, version)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	tp := NewTracerProvider(exporter, res)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// NewResource describes this process to the collector.
func NewResource(ctx context.Context, service, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration, "telemetry: failed to build resource")
	}
	return res, nil
}

// NewTracerProvider batches spans to exporter. Sampling follows the parent
// span and samples root spans.
func NewTracerProvider(exporter sdktrace.SpanExporter, res *resource.Resource) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
}
