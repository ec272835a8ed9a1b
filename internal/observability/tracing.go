// Package observability wires OpenTelemetry tracing into genkit's tracer
// provider, exporting spans over OTLP HTTP to a local collector.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/arealhq/arealbot/internal/log"
)

// DefaultCollectorHost is the default OTLP HTTP endpoint.
const DefaultCollectorHost = "localhost:4318"

// Config for tracing setup.
type Config struct {
	// CollectorHost is the OTLP HTTP endpoint (default: localhost:4318).
	CollectorHost string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName is the service name shown in the tracing backend.
	ServiceName string
}

// Setup registers an OTLP exporter with genkit's TracerProvider so model,
// retrieval, and tool spans all flow to one collector.
//
// Returns a shutdown function that flushes pending spans. Exporter
// construction failure disables tracing instead of failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	host := cfg.CollectorHost
	if host == "" {
		host = DefaultCollectorHost
	}

	// Genkit's TracerProvider reads service identity from the environment.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"collector", host,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}
