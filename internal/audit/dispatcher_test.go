package audit

import (
	"context"
	"testing"

	"virtual-wallet/backend/internal/audit/domain"
)

// blockingSink holds every write until release is closed.
type blockingSink struct {
	memSink
	release chan struct{}
}

func (b *blockingSink) Write(ctx context.Context, e *domain.AuditLog) error {
	<-b.release
	return b.memSink.Write(ctx, e)
}

func TestAsyncSink_DrainsOnClose(t *testing.T) {
	inner := &memSink{}
	s := NewAsyncSink("test", inner, 16, nil)
	for i := 0; i < 10; i++ {
		_ = s.Write(context.Background(), &domain.AuditLog{Event: EventLoginSuccess})
	}
	s.Close()
	if got := len(inner.all()); got != 10 {
		t.Errorf("written = %d, want 10", got)
	}
	// Writes after Close are ignored.
	_ = s.Write(context.Background(), &domain.AuditLog{Event: EventLoginSuccess})
	if got := len(inner.all()); got != 10 {
		t.Errorf("written after close = %d, want 10", got)
	}
}

func TestAsyncSink_DropsWhenFull(t *testing.T) {
	inner := &blockingSink{release: make(chan struct{})}
	s := NewAsyncSink("test", inner, 1, nil)
	for i := 0; i < 10; i++ {
		if err := s.Write(context.Background(), &domain.AuditLog{Event: EventLoginFailed}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// At most one entry is in the worker and one in the buffer.
	if s.Dropped() < 8 {
		t.Errorf("Dropped = %d, want >= 8", s.Dropped())
	}
	close(inner.release)
	s.Close()
}
