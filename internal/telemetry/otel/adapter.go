package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"virtual-wallet/backend/internal/audit/domain"
)

const instrumentationName = "wallet.auth"

// recordEmitter is the part of otellog.Logger the sink calls.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// AuditSink turns audit entries into OTel log records and increments the auth.events counter.
type AuditSink struct {
	logger recordEmitter
	events metric.Int64Counter
}

// NewAuditSink returns a sink for the given providers. Either may be nil; the sink then skips that signal.
func NewAuditSink(lp *sdklog.LoggerProvider, mp metric.MeterProvider) (*AuditSink, error) {
	var logger recordEmitter
	if lp != nil {
		logger = lp.Logger(instrumentationName)
	}
	return newAuditSink(logger, mp)
}

func newAuditSink(logger recordEmitter, mp metric.MeterProvider) (*AuditSink, error) {
	s := &AuditSink{logger: logger}
	if mp != nil {
		c, err := mp.Meter(instrumentationName).Int64Counter("auth.events",
			metric.WithDescription("Authentication events by name and reason"),
			metric.WithUnit("{event}"))
		if err != nil {
			return nil, err
		}
		s.events = c
	}
	return s, nil
}

// Write emits e. It never fails.
func (s *AuditSink) Write(ctx context.Context, e *domain.AuditLog) error {
	if e == nil {
		return nil
	}
	if s.events != nil {
		attrs := []attribute.KeyValue{attribute.String("event", e.Event)}
		if e.Reason != "" {
			attrs = append(attrs, attribute.String("reason", e.Reason))
		}
		s.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if s.logger == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(e.Event))
	rec.SetSeverity(severityFor(e.Event))
	rec.AddAttributes(
		otellog.String("audit_id", e.ID),
		otellog.String("event", e.Event),
		otellog.String("ip", e.IP),
	)
	if e.AccountID != "" {
		rec.AddAttributes(otellog.String("user_id", e.AccountID))
	}
	if e.Phone != "" {
		rec.AddAttributes(otellog.String("phone", e.Phone))
	}
	if e.Reason != "" {
		rec.AddAttributes(otellog.String("reason", e.Reason))
	}
	s.logger.Emit(ctx, rec)
	return nil
}

// severityFor marks failures as warnings.
func severityFor(event string) otellog.Severity {
	switch event {
	case "login_failed", "register_failed", "mfa_verify_failed":
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
