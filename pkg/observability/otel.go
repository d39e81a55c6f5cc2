package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	instrumentationName = "github.com/platinummonkey/portal"
	exporterDialTimeout = 10 * time.Second
)

// OTelConfig selects the OTLP collector session spans are exported to
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Insecure       bool
}

// Telemetry owns the installed trace and metric providers
type Telemetry struct {
	tracer *sdktrace.TracerProvider
	meter  *metric.MeterProvider
	logger *Logger
}

// Tracer returns the tracer for a portal component. Until InitOTel installs
// a provider the global one is a no-op.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}

// InitOTel installs OTLP/gRPC exporters as the global providers. It returns
// nil when telemetry is disabled; Shutdown accepts that.
func InitOTel(ctx context.Context, cfg OTelConfig, logger *Logger) (*Telemetry, error) {
	if !cfg.Enabled {
		logger.Debug("telemetry export disabled")
		return nil, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe telemetry resource: %w", err)
	}

	var dial []grpc.DialOption
	if cfg.Insecure {
		dial = append(dial, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	spans, err := otlptracegrpc.New(dialCtx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithDialOption(dial...))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	points, err := otlpmetricgrpc.New(dialCtx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithDialOption(dial...))
	if err != nil {
		spans.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	t := &Telemetry{
		tracer: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spans, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		),
		meter: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(points, metric.WithInterval(30*time.Second))),
		),
		logger: logger,
	}

	otel.SetTracerProvider(t.tracer)
	otel.SetMeterProvider(t.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.WithField("endpoint", cfg.Endpoint).Info("exporting session telemetry")
	return t, nil
}

// Shutdown flushes pending spans and metrics
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	err := errors.Join(t.tracer.Shutdown(ctx), t.meter.Shutdown(ctx))
	if err != nil {
		t.logger.WithError(err).Error("failed to flush telemetry")
	}
	return err
}
