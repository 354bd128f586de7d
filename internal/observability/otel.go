// Package observability sets up tracing export and the agent's Prometheus
// collectors.
package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"google.golang.org/grpc/credentials"

	"github.com/tbourn/xianyu-agent/internal/config"
)

// defaultServiceName is used when OTEL_SERVICE_NAME is empty.
const defaultServiceName = "xianyu-agent"

// exportTimeout bounds one batch upload to the collector.
const exportTimeout = 10 * time.Second

// agentInfo identifies this agent process in exported spans. Several agents
// may run against the same collector, each owning a different set of
// seller accounts, so the instance id is what tells their spans apart.
type agentInfo struct {
	Service     string
	Version     string
	Environment string
	Instance    string
}

// Overridable in tests.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newAgentResourceFn = func(ctx context.Context, info agentInfo) (*resource.Resource, error) {
		attrs := []attribute.KeyValue{
			semconv.ServiceName(info.Service),
			semconv.ServiceVersion(info.Version),
			semconv.ServiceInstanceID(info.Instance),
		}
		if info.Environment != "" {
			attrs = append(attrs, semconv.DeploymentEnvironment(info.Environment))
		}
		return resource.New(ctx,
			resource.WithAttributes(attrs...),
			resource.WithProcessPID(),
		)
	}

	hostname = os.Hostname
)

// SetupOTel configures OpenTelemetry tracing and returns a shutdown function.
// Spans come from otelgin, the GORM plugin, the market client and the
// per-account pipelines (services/reply, services/delivery, services/items),
// which tag them with credential.id and chat.id. When disabled the global
// no-op provider stays in place.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(exporterOptions(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := newAgentResourceFn(ctx, describeAgent(cfg, version))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithExportTimeout(exportTimeout)),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func exporterOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// describeAgent fills in the defaults of the exported identity. The
// instance falls back to host:pid.
func describeAgent(cfg config.OTELConfig, version string) agentInfo {
	info := agentInfo{
		Service:     cfg.ServiceName,
		Version:     version,
		Environment: cfg.Environment,
		Instance:    cfg.Instance,
	}
	if info.Service == "" {
		info.Service = defaultServiceName
	}
	if info.Instance == "" {
		host, err := hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		info.Instance = fmt.Sprintf("%s:%d", host, os.Getpid())
	}
	return info
}

// sampler honours the parent's decision and samples new roots at ratio,
// clamped to [0,1].
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
