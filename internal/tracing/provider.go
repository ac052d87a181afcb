// Package tracing provides OpenTelemetry initialization and W3C trace context
// propagation for the listing requests virtual users send.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Takch02/blabus-session2-item1/internal/config"
)

const (
	defaultServiceName  = "auctionload"
	instrumentationName = "github.com/Takch02/blabus-session2-item1"
)

// Provider holds the tracer virtual users start request spans with.
// The zero value traces nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// exportTarget is the collector a run reports spans to, after applying the
// standard OTEL_* environment fallbacks.
type exportTarget struct {
	serviceName string
	endpoint    string
	protocol    string
	insecure    bool
}

func resolveTarget(cfg config.TracingConfig, getenv func(string) string) exportTarget {
	t := exportTarget{
		serviceName: strings.TrimSpace(cfg.ServiceName),
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		protocol:    strings.ToLower(strings.TrimSpace(cfg.Protocol)),
		insecure:    cfg.Insecure,
	}
	if t.serviceName == "" {
		t.serviceName = getenv("OTEL_SERVICE_NAME")
	}
	if t.serviceName == "" {
		t.serviceName = defaultServiceName
	}
	if t.endpoint == "" {
		t.endpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if t.protocol == "" {
		t.protocol = "grpc"
	}
	return t
}

// samplerFor maps sample_rate onto a parent-based sampler: 1 keeps every
// span, 0 none, anything between a trace-id ratio.
func samplerFor(rate float64) (sdktrace.Sampler, error) {
	var root sdktrace.Sampler
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		root = sdktrace.NeverSample()
	case rate == 1:
		root = sdktrace.AlwaysSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root), nil
}

// Init builds the provider for a run. Without an endpoint and propagation it
// returns a provider that creates no spans. With propagation but no endpoint
// spans carry real IDs in traceparent headers and are never exported.
func Init(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}

	target := resolveTarget(cfg, os.Getenv)
	if target.endpoint == "" {
		tp := sdktrace.NewTracerProvider()
		installPropagator()
		return newProvider(tp, cfg.ShouldPropagate()), nil
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(target.serviceName)))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	exporter, err := target.exporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	installPropagator()
	return newProvider(tp, cfg.ShouldPropagate()), nil
}

func newProvider(tp *sdktrace.TracerProvider, propagate bool) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName), propagate: propagate}
}

func (t exportTarget) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch t.protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
		if t.insecure {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.endpoint)}
		if t.insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", t.protocol)
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns the run's tracer, or a no-op tracer when tracing is off.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether requests carry traceparent headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
