// Package telemetry wires decision, constraint, and approval outcomes to
// OpenTelemetry traces and Prometheus counters. It is emission-only: the
// collection pipeline (OTLP collector, Prometheus server) is the host's
// concern, not this package's.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// Config configures the OpenTelemetry trace provider.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns production-ready defaults, tracing disabled until
// explicitly turned on by host config.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "policy-engine",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4317",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider owns the trace provider and exposes span helpers for the PDP
// agents.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
}

// New builds a Provider. When config.Enabled is false it returns a
// no-exporter Provider whose StartSpan calls are inert.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{config: config, tracer: otel.Tracer("policy-engine"), meter: otel.Meter("policy-engine")}
	if !config.Enabled {
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}

	if err := p.initMeterProvider(ctx, res); err != nil {
		return nil, err
	}

	sampler := sdktrace.TraceIDRatioBased(config.SampleRate)
	if config.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if config.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	p.tracer = otel.Tracer("policy-engine", trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter("policy-engine", metric.WithInstrumentationVersion(config.ServiceVersion))

	return p, nil
}

// initMeterProvider builds the OTLP gRPC metric exporter and registers it
// as the global meter provider, the metrics-side counterpart of the trace
// exporter above.
func (p *Provider) initMeterProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: build metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(p.config.BatchTimeout))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

// Meter returns the provider's OTel meter, for components that want an
// OTel-native instrument alongside the Prometheus metrics in metrics.go.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Shutdown flushes and stops the trace and meter providers. A no-op for
// either that was never enabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry: shutdown errors: %v", errs)
	}
	return nil
}

// StartSpan starts an OTel span for name, returning the span-carrying
// context and the span itself.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordSpan emits a completed ExecutionSpan onto OTel as a zero-duration
// logical span, for spans constructed by pkg/audit rather than started
// directly through this provider (e.g. when mirroring a finished agent
// span into traces after the fact).
func (p *Provider) RecordSpan(ctx context.Context, span *contracts.ExecutionSpan) {
	attrs := []attribute.KeyValue{
		attribute.String("policyengine.span.type", string(span.Type)),
		attribute.String("policyengine.repo_name", span.RepoName),
		attribute.String("policyengine.span_id", span.SpanID),
		attribute.String("policyengine.status", string(span.Status)),
	}
	if span.AgentName != "" {
		attrs = append(attrs, attribute.String("policyengine.agent_name", span.AgentName))
	}
	name := "repo_span"
	if span.Type == contracts.SpanAgent {
		name = "agent_span:" + span.AgentName
	}
	_, otelSpan := p.StartSpan(ctx, name, attrs...)
	if span.Status == contracts.SpanFailed && span.Error != "" {
		otelSpan.RecordError(fmt.Errorf("%s", span.Error))
	}
	otelSpan.End()
}
