package otel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	providers, err := NewProviders(ctx, Options{ServiceName: "test-service"}, nil)
	if err != nil {
		t.Fatalf("NewProviders empty endpoint: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Error("providers should not be nil")
	}
	if err := providers.Shutdown(ctx); err != nil {
		t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
	}
}

func TestNewProviders_LocalResourceAndSampler(t *testing.T) {
	p, err := NewProviders(context.Background(), Options{
		ServiceName:      "wallet-auth",
		ServiceVersion:   "1.2.3",
		Environment:      "staging",
		TraceSampleRatio: 1,
	}, nil)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	defer func() { _ = p.TracerProvider.Shutdown(context.Background()) }()

	_, span := p.TracerProvider.Tracer("test").Start(context.Background(), "login")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("root span should be sampled at ratio 1")
	}
	ro, ok := span.(sdktrace.ReadOnlySpan)
	if !ok {
		t.Fatalf("span %T is not an sdk span", span)
	}
	attrs := map[string]string{}
	for _, kv := range ro.Resource().Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(semconv.ServiceNameKey)] != "wallet-auth" || attrs[string(semconv.ServiceVersionKey)] != "1.2.3" {
		t.Errorf("service attributes = %v", attrs)
	}
	if attrs[string(semconv.DeploymentEnvironmentNameKey)] != "staging" {
		t.Errorf("deployment environment = %q", attrs[string(semconv.DeploymentEnvironmentNameKey)])
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{-1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{") || !strings.Contains(desc, "root:"+tt.want) {
			t.Errorf("sampler(%v) = %s, want parent-based root %s", tt.ratio, desc, tt.want)
		}
	}
}

func TestSampler_FollowsParent(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler(0.000001)))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)
	_, span := tp.Tracer("test").Start(ctx, "child")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("child of a sampled remote parent should be sampled")
	}
}

func TestParseCollector(t *testing.T) {
	tests := []struct {
		endpoint  string
		insecure  bool
		target    string
		plaintext bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://otel:4317/v1/traces", false, "otel:4317", true},
		{"https://otel.example.com:4317", false, "otel.example.com:4317", false},
		{"https://otel.example.com:4317", true, "otel.example.com:4317", true},
	}
	for _, tt := range tests {
		c, err := parseCollector(tt.endpoint, tt.insecure)
		if err != nil {
			t.Errorf("parseCollector(%q): %v", tt.endpoint, err)
			continue
		}
		if c.target != tt.target || c.plainTCP != tt.plaintext {
			t.Errorf("parseCollector(%q, %v) = %+v, want %s plaintext=%v", tt.endpoint, tt.insecure, c, tt.target, tt.plaintext)
		}
	}
}

func TestShutdownStack_ReverseOrderAndJoinedErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var order []string
	var s shutdownStack
	step := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	metricsErr := errors.New("export timeout")
	s.push("traces", step("traces", nil))
	s.push("metrics", step("metrics", metricsErr))
	s.push("logs", step("logs", nil))

	err := s.run(context.Background(), zap.New(core))
	if strings.Join(order, ",") != "logs,metrics,traces" {
		t.Errorf("order = %v", order)
	}
	if !errors.Is(err, metricsErr) || !strings.Contains(err.Error(), "metrics:") {
		t.Errorf("err = %v", err)
	}
	if logs.Len() != 1 {
		t.Errorf("warnings = %d, want 1", logs.Len())
	}
	if err := s.run(context.Background(), zap.NewNop()); err != nil {
		t.Errorf("second run = %v, want nil", err)
	}
}

func TestNewProviders_WhitespaceEndpoint(t *testing.T) {
	providers, err := NewProviders(context.Background(), Options{Endpoint: "   ", ServiceName: "test-service"}, nil)
	if err != nil {
		t.Fatalf("NewProviders whitespace endpoint: %v", err)
	}
	if providers == nil {
		t.Fatal("providers should not be nil")
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"invalid characters", "://invalid"},
		{"malformed URL", "http://[invalid"},
		{"missing host", "http://"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProviders(context.Background(), Options{Endpoint: tc.endpoint, ServiceName: "test-service"}, nil)
			if err == nil {
				t.Errorf("NewProviders(%q) should return error", tc.endpoint)
			}
		})
	}
}

func TestNewProviders_ValidEndpoints(t *testing.T) {
	// Exporters dial lazily, so construction succeeds without a collector.
	for _, opts := range []Options{
		{Endpoint: "localhost:4317"},
		{Endpoint: "http://localhost:4317/v1/traces"},
		{Endpoint: "https://localhost:4317"},
		{Endpoint: "https://localhost:4317", Insecure: true},
	} {
		opts.ServiceName = "test-service"
		opts.ServiceVersion = "1.0.0"
		p, err := NewProviders(context.Background(), opts, nil)
		if err != nil {
			t.Logf("NewProviders(%q): %v", opts.Endpoint, err)
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = p.Shutdown(ctx)
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	providers, err := NewProviders(context.Background(), Options{ServiceName: "test-service"}, nil)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() == oldMeterProvider {
		t.Error("MeterProvider should be updated")
	}
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	ctx := context.Background()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	providers := &Providers{TracerProvider: tp, Shutdown: func(context.Context) error { return nil }}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() != oldMeterProvider {
		t.Error("MeterProvider should not be updated when nil")
	}
}
