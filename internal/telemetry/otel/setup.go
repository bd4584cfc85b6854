// Package otel builds the OpenTelemetry providers for the wallet auth service: HTTP and gRPC
// server spans, the auth.events counter, and audit entries exported as log records.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.uber.org/zap"
)

const (
	defaultMetricInterval = 15 * time.Second
	// Audit records are few and operators read them close to real time.
	auditExportInterval = time.Second
	auditQueueSize      = 4096
)

// Options configures NewProviders.
type Options struct {
	// Endpoint is the OTLP gRPC collector (host:port or URL). Empty keeps telemetry in process.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Insecure forces plaintext even for https endpoints.
	Insecure bool
	// TraceSampleRatio samples root spans; child spans follow their parent. Values outside (0,1] sample everything.
	TraceSampleRatio float64
	// MetricInterval is the push interval for the auth.events counter.
	MetricInterval time.Duration
}

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

type collector struct {
	target   string
	plainTCP bool
}

// parseCollector reduces an endpoint to the host:port the gRPC exporters dial.
// A URL path is ignored. Plaintext is used unless the scheme is https and insecure is false.
func parseCollector(endpoint string, insecure bool) (collector, error) {
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return collector{target: u.Host, plainTCP: insecure || u.Scheme != "https"}, nil
}

func serviceResource(opts Options) (*resource.Resource, error) {
	attrs := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	)
	if opts.Environment != "" {
		env := resource.NewWithAttributes(semconv.SchemaURL, semconv.DeploymentEnvironmentName(opts.Environment))
		merged, err := resource.Merge(attrs, env)
		if err != nil {
			return nil, err
		}
		attrs = merged
	}
	return resource.Merge(resource.Default(), attrs)
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// NewProviders returns providers exporting to opts.Endpoint over OTLP gRPC. With no endpoint the
// providers still carry the service resource and sampler but export nothing, and Shutdown is a no-op.
func NewProviders(ctx context.Context, opts Options, log *zap.Logger) (*Providers, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res, err := serviceResource(opts)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithSampler(sampler(opts.TraceSampleRatio))),
			MeterProvider:  metric.NewMeterProvider(metric.WithResource(res)),
			LoggerProvider: sdklog.NewLoggerProvider(sdklog.WithResource(res)),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}
	col, err := parseCollector(endpoint, opts.Insecure)
	if err != nil {
		return nil, err
	}

	var stack shutdownStack
	fail := func(err error) (*Providers, error) {
		_ = stack.run(ctx, log)
		return nil, err
	}

	spanExp, err := otlptracegrpc.New(ctx, traceExporterOptions(col)...)
	if err != nil {
		return fail(fmt.Errorf("trace exporter: %w", err))
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.TraceSampleRatio)),
		sdktrace.WithBatcher(spanExp),
	)
	stack.push("traces", tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, metricExporterOptions(col)...)
	if err != nil {
		return fail(fmt.Errorf("metric exporter: %w", err))
	}
	interval := opts.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(interval))),
	)
	stack.push("metrics", mp.Shutdown)

	logExp, err := otlploggrpc.New(ctx, logExporterOptions(col)...)
	if err != nil {
		return fail(fmt.Errorf("log exporter: %w", err))
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp,
			sdklog.WithExportInterval(auditExportInterval),
			sdklog.WithMaxQueueSize(auditQueueSize),
		)),
	)
	stack.push("logs", lp.Shutdown)

	log.Info("telemetry: exporting over OTLP",
		zap.String("collector", col.target),
		zap.Bool("plaintext", col.plainTCP),
		zap.Float64("trace_sample_ratio", opts.TraceSampleRatio))
	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       func(ctx context.Context) error { return stack.run(ctx, log) },
	}, nil
}

func traceExporterOptions(c collector) []otlptracegrpc.Option {
	o := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.target)}
	if c.plainTCP {
		o = append(o, otlptracegrpc.WithInsecure())
	}
	return o
}

func metricExporterOptions(c collector) []otlpmetricgrpc.Option {
	o := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.target)}
	if c.plainTCP {
		o = append(o, otlpmetricgrpc.WithInsecure())
	}
	return o
}

func logExporterOptions(c collector) []otlploggrpc.Option {
	o := []otlploggrpc.Option{otlploggrpc.WithEndpoint(c.target)}
	if c.plainTCP {
		o = append(o, otlploggrpc.WithInsecure())
	}
	return o
}

type shutdownStep struct {
	name string
	fn   func(context.Context) error
}

// shutdownStack stops providers in reverse creation order so audit log records flush last.
type shutdownStack struct {
	steps []shutdownStep
}

func (s *shutdownStack) push(name string, fn func(context.Context) error) {
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

func (s *shutdownStack) run(ctx context.Context, log *zap.Logger) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		st := s.steps[i]
		if err := st.fn(ctx); err != nil {
			log.Warn("telemetry: shutdown", zap.String("signal", st.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
		}
	}
	s.steps = nil
	return errors.Join(errs...)
}

// SetGlobal installs the tracer and meter providers globally for otelgrpc. The logger provider
// stays local and is handed to NewAuditSink.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
