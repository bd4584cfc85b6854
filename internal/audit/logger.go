// Package audit records authentication events to one or more sinks, best-effort.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"virtual-wallet/backend/internal/audit/domain"
	auditrepo "virtual-wallet/backend/internal/audit/repository"
)

// Event names.
const (
	EventRegisterSuccess  = "register_success"
	EventRegisterFailed   = "register_failed"
	EventLoginSuccess     = "login_success"
	EventLoginFailed      = "login_failed"
	EventLoginMFAPending  = "login_mfa_pending"
	EventMFAVerifySuccess = "mfa_verify_success"
	EventMFAVerifyFailed  = "mfa_verify_failed"
	EventKYCUpdated       = "kyc_status_updated"
	EventMFASettingChange = "mfa_setting_changed"
)

// Event is what a flow reports. The logger adds id, timestamp and client IP.
type Event struct {
	Name      string
	AccountID string
	Phone     string
	Reason    string
}

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Recorder is the port flows depend on. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink receives fully populated entries.
type Sink interface {
	Write(ctx context.Context, entry *domain.AuditLog) error
}

// Logger implements Recorder by fanning each entry out to every sink.
type Logger struct {
	sinks       []Sink
	ipExtractor IPExtractor
	log         *zap.Logger
	nowF        func() time.Time
}

// NewLogger returns a Logger. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(log *zap.Logger, ipExtractor IPExtractor, sinks ...Sink) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{sinks: sinks, ipExtractor: ipExtractor, log: log, nowF: time.Now}
}

// Record writes e to every sink. Sink errors are logged and not returned.
func (l *Logger) Record(ctx context.Context, e Event) {
	ip := ""
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if ip == "" {
		ip = "unknown"
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		Event:     e.Name,
		AccountID: e.AccountID,
		Phone:     e.Phone,
		Reason:    e.Reason,
		IP:        ip,
		CreatedAt: l.nowF().UTC(),
	}
	for _, s := range l.sinks {
		if err := s.Write(ctx, entry); err != nil {
			l.log.Warn("audit: failed to write event", zap.String("event", e.Name), zap.Error(err))
		}
	}
}

// ZapSink writes entries as structured log lines.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink returns a sink logging to log under the "audit" name.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log.Named("audit")}
}

func (s *ZapSink) Write(_ context.Context, e *domain.AuditLog) error {
	fields := []zap.Field{
		zap.String("event", e.Event),
		zap.String("audit_id", e.ID),
		zap.String("ip", e.IP),
		zap.Time("timestamp", e.CreatedAt),
	}
	if e.AccountID != "" {
		fields = append(fields, zap.String("user_id", e.AccountID))
	}
	if e.Phone != "" {
		fields = append(fields, zap.String("phone", e.Phone))
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	s.log.Info("auth event", fields...)
	return nil
}

// RepositorySink persists entries through an audit repository.
type RepositorySink struct {
	repo auditrepo.Repository
}

// NewRepositorySink returns a sink writing to repo.
func NewRepositorySink(repo auditrepo.Repository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Write(ctx context.Context, e *domain.AuditLog) error {
	return s.repo.Create(ctx, e)
}
