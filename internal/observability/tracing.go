// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Genkit owns the TracerProvider and opens a span per generation call.
// This package only attaches an OTLP HTTP exporter to that provider, so
// enabling tracing never changes the call path, and a collector outage
// costs spans, not notes.
//
// # Configuration
//
// Config file (~/.jotdown/config.yaml):
//
//	tracing:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "jotdown"
//
// Environment overrides: JOTDOWN_TRACING, JOTDOWN_OTLP_ENDPOINT.
//
// Any OTLP-capable collector works: an otel-collector sidecar, Jaeger
// with OTLP ingestion enabled, or a vendor agent listening on 4318.
//
// Verify the endpoint is reachable:
//
//	curl -v http://localhost:4318/v1/traces
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name on exported spans
	ServiceName string
}

// DefaultEndpoint is the default OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP exporter with Genkit's TracerProvider.
//
// Returns a shutdown function that flushes pending spans.
// If Endpoint is empty, uses DefaultEndpoint (localhost:4318).
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Genkit's TracerProvider reads its resource attributes from the
	// standard OTEL variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// One span up front proves the pipeline before the first generation.
	tracer := tracing.TracerProvider().Tracer("jotdown-init")
	_, span := tracer.Start(ctx, "jotdown.init")
	span.End()

	return tracing.TracerProvider().Shutdown, nil
}
