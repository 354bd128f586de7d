package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/xianyu-agent/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabledCfg(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prev := otel.GetTracerProvider()

	cfg := enabledCfg("xianyu-agent")
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0.0.0")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("disabled setup must not replace the provider")
	}
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)

		cfg := enabledCfg("agent")
		cfg.Insecure = insecure
		shutdown, err := SetupOTel(context.Background(), cfg, "v1.2.3")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected *sdktrace.TracerProvider", insecure)
		}

		// trace context survives a round trip through the propagator
		ctx, span := otel.Tracer("services/delivery").Start(context.Background(), "deliver")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		if carrier.Get("traceparent") == "" {
			t.Fatalf("insecure=%v: traceparent not injected", insecure)
		}
		span.End()

		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		if err := shutdown(sctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
		cancel()
	}
}

func TestSetupOTel_AgentIdentity(t *testing.T) {
	preserveOTelGlobals(t)

	orig := newAgentResourceFn
	t.Cleanup(func() { newAgentResourceFn = orig })
	var (
		got agentInfo
		res *resource.Resource
	)
	newAgentResourceFn = func(ctx context.Context, info agentInfo) (*resource.Resource, error) {
		got = info
		r, err := orig(ctx, info)
		res = r
		return r, err
	}

	cfg := enabledCfg("")
	cfg.Environment = "prod"
	cfg.Instance = "agent-1"
	shutdown, err := SetupOTel(context.Background(), cfg, "v2")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	want := agentInfo{Service: defaultServiceName, Version: "v2", Environment: "prod", Instance: "agent-1"}
	if got != want {
		t.Fatalf("identity = %+v, want %+v", got, want)
	}
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["service.instance.id"] != "agent-1" || attrs["deployment.environment"] != "prod" || attrs["service.name"] != defaultServiceName {
		t.Fatalf("resource attributes: %v", attrs)
	}
}

func TestDescribeAgent_InstanceFallsBackToHost(t *testing.T) {
	orig := hostname
	t.Cleanup(func() { hostname = orig })

	hostname = func() (string, error) { return "box7", nil }
	info := describeAgent(config.OTELConfig{ServiceName: "svc"}, "v1")
	if want := fmt.Sprintf("box7:%d", os.Getpid()); info.Instance != want {
		t.Fatalf("instance = %q, want %q", info.Instance, want)
	}

	hostname = func() (string, error) { return "", errors.New("no host") }
	info = describeAgent(config.OTELConfig{}, "v1")
	if !strings.HasPrefix(info.Instance, "unknown:") || info.Service != defaultServiceName {
		t.Fatalf("fallback identity: %+v", info)
	}
}

func TestSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		desc  string
	}{
		{0, "root:AlwaysOffSampler"},
		{1, "root:AlwaysOnSampler"},
		{0.5, "root:TraceIDRatioBased"},
	}
	for _, tc := range cases {
		if d := sampler(tc.ratio).Description(); !strings.Contains(d, tc.desc) {
			t.Fatalf("ratio=%v: %s", tc.ratio, d)
		}
	}
}

func TestSetupOTel_ClampsSampleRatio(t *testing.T) {
	cases := []struct {
		ratio   float64
		sampled bool
	}{
		{5, true},
		{-1, false},
	}
	for _, tc := range cases {
		preserveOTelGlobals(t)

		cfg := enabledCfg("agent")
		cfg.SampleRatio = tc.ratio
		shutdown, err := SetupOTel(context.Background(), cfg, "v1")
		if err != nil {
			t.Fatalf("ratio=%v: %v", tc.ratio, err)
		}
		_, span := otel.Tracer("clamp").Start(context.Background(), "root")
		if got := span.SpanContext().IsSampled(); got != tc.sampled {
			t.Fatalf("ratio=%v: sampled=%v want %v", tc.ratio, got, tc.sampled)
		}
		span.End()
		_ = shutdown(context.Background())
	}
}

func TestSetupOTel_CanceledContext_StillSucceeds(t *testing.T) {
	preserveOTelGlobals(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // exporter creation is lazy

	shutdown, err := SetupOTel(ctx, enabledCfg("agent"), "v1")
	if err != nil {
		t.Fatalf("unexpected err with canceled ctx: %v", err)
	}
	_ = shutdown(context.Background())
}

func TestSetupOTel_SeamErrors_LeaveGlobalsIntact(t *testing.T) {
	origExp, origRes := newOTLPExporterFn, newAgentResourceFn
	t.Cleanup(func() {
		newOTLPExporterFn = origExp
		newAgentResourceFn = origRes
	})

	cases := map[string]func(){
		"exporter": func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("boom-exporter")
			}
		},
		"resource": func() {
			newAgentResourceFn = func(context.Context, agentInfo) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
		},
	}
	for name, breakSeam := range cases {
		preserveOTelGlobals(t)
		newOTLPExporterFn, newAgentResourceFn = origExp, origRes
		breakSeam()

		prevTP := otel.GetTracerProvider()
		prevProp := otel.GetTextMapPropagator()
		if _, err := SetupOTel(context.Background(), enabledCfg("agent"), "v0"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
			t.Fatalf("%s: globals changed on failure", name)
		}
	}
}
