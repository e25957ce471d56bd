package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for every gateway span.
const TracerName = "github.com/ShivangMishra/veda-auth-central"

// TracingOptions configures the OTLP trace exporter.
type TracingOptions struct {
	Enabled     bool
	Endpoint    string  // OTLP gRPC endpoint, host:port
	Insecure    bool    // disable TLS to the collector
	ServiceName string
	Version     string
	SampleRatio float64 // 0 or >= 1 samples everything
}

// Tracer returns the gateway tracer from the global provider. Before
// InitTracing runs, or when tracing is disabled, spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitTracing sets up OpenTelemetry tracing with an OTLP gRPC exporter and
// registers the W3C trace context propagator. It returns a shutdown function
// that flushes pending spans; call it on graceful shutdown.
func InitTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	// The propagator is installed even without an exporter so inbound trace
	// ids still reach the broker.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !opts.Enabled || opts.Endpoint == "" {
		slog.Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	slog.Info("tracing initialized", "endpoint", opts.Endpoint, "service", opts.ServiceName)

	return tp.Shutdown, nil
}
