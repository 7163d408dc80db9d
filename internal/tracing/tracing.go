package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/willoughbyrm/lighthouse"

// Provider owns the OpenTelemetry tracer provider of the process.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// NewProvider creates a provider that writes spans as JSON to w and installs
// it as the global tracer provider.
func NewProvider(serviceName, version string, w io.Writer) (*Provider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	return NewProviderWithOptions(serviceName, version, sdktrace.WithBatcher(exporter)), nil
}

// NewProviderWithOptions creates a provider from explicit SDK options, which
// must register at least one span processor. Tests pass
// sdktrace.WithSyncer with an in-memory exporter.
func NewProviderWithOptions(serviceName, version string, opts ...sdktrace.TracerProviderOption) *Provider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Provider{provider: provider}
}

// Tracer returns a tracer from this provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.provider.Tracer(tracerName)
}

// Shutdown flushes pending spans and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// Tracer returns the tracer of the global provider. It is a no-op tracer
// until a Provider has been created.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span with the global tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, spanName, opts...)
}

// RecordError records err on span and marks the span as failed.
// A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Common attribute keys.
var (
	AttrRunID        = attribute.Key("lighthouse.run.id")
	AttrURL          = attribute.Key("lighthouse.url")
	AttrNavigationID = attribute.Key("lighthouse.navigation.id")
	AttrPhase        = attribute.Key("lighthouse.phase")
	AttrArtifactID   = attribute.Key("lighthouse.artifact.id")
	AttrCollector    = attribute.Key("lighthouse.collector")
	AttrTerminal     = attribute.Key("lighthouse.artifact.terminal")
	AttrSkipped      = attribute.Key("lighthouse.artifact.skipped")
	AttrArtifacts    = attribute.Key("lighthouse.artifacts")
)
