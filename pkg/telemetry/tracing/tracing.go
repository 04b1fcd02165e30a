// Package tracing configures process-wide OpenTelemetry tracing for the
// willingness daemon.
package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/goclaw/willing/config"
	"github.com/goclaw/willing/pkg/logger"
)

// ShutdownFunc flushes and releases tracing resources.
type ShutdownFunc func(ctx context.Context) error

// Option configures Init.
type Option func(*options)

type options struct {
	logger   logger.Logger
	exporter func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error)
}

// WithLogger sets the logger used to report exporter failures.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExporter replaces the OTLP exporter factory.
func WithExporter(fn func(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error)) Option {
	return func(o *options) {
		if fn != nil {
			o.exporter = fn
		}
	}
}

func newOTLPExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	endpoint := normalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint cannot be empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
		otlptracegrpc.WithInsecure(),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}

// quietExporter keeps collector outages off the evaluation path. Export
// errors are logged and swallowed so the batcher never retries into a
// blocked request.
type quietExporter struct {
	exporter sdktrace.SpanExporter
	endpoint string
	logger   logger.Logger
}

func (e *quietExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := e.exporter.ExportSpans(ctx, spans); err != nil {
		e.logger.Warn("tracing export failed",
			"error", err,
			"endpoint", e.endpoint,
			"span_count", len(spans),
		)
	}
	return nil
}

func (e *quietExporter) Shutdown(ctx context.Context) error {
	return e.exporter.Shutdown(ctx)
}

func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Init installs the global tracer provider described by cfg. When tracing
// is disabled a noop provider is installed and the returned ShutdownFunc does
// nothing.
func Init(ctx context.Context, cfg config.TracingConfig, serviceName, serviceVersion string, opts ...Option) (ShutdownFunc, error) {
	o := options{
		logger:   logger.Global(),
		exporter: newOTLPExporter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	installPropagator()
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	exp, err := o.exporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create tracing exporter: %w", err)
	}
	exp = &quietExporter{
		exporter: exp,
		endpoint: normalizeEndpoint(cfg.Endpoint),
		logger:   o.logger.With("component", "tracing"),
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("create tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		if err := tp.ForceFlush(shutdownCtx); err != nil {
			_ = tp.Shutdown(shutdownCtx)
			return fmt.Errorf("flush tracing provider: %w", err)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown tracing provider: %w", err)
		}
		return nil
	}, nil
}

func checkConfig(cfg config.TracingConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "otlp":
	case "":
		return fmt.Errorf("tracing exporter cannot be empty")
	default:
		return fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("tracing endpoint cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("tracing timeout must be > 0")
	}
	return nil
}

func selectSampler(cfg config.TracingConfig) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.Sampler)) {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))
	}
}

func normalizeEndpoint(endpoint string) string {
	raw := strings.TrimSpace(endpoint)
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Host
}
