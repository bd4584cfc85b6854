package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"virtual-wallet/backend/internal/audit/domain"
)

// writeTimeout bounds a single background write.
const writeTimeout = 5 * time.Second

// AsyncSink moves writes to a slow sink (database, Kafka) off the request path.
// Entries are dropped when the buffer is full.
type AsyncSink struct {
	name      string
	inner     Sink
	log       *zap.Logger
	ch        chan *domain.AuditLog
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsyncSink starts a worker draining into inner. bufferSize <= 0 selects 256.
func NewAsyncSink(name string, inner Sink, bufferSize int, log *zap.Logger) *AsyncSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &AsyncSink{
		name:  name,
		inner: inner,
		log:   log,
		ch:    make(chan *domain.AuditLog, bufferSize),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.ch:
			s.write(e)
		case <-s.done:
			for {
				select {
				case e := <-s.ch:
					s.write(e)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncSink) write(e *domain.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.inner.Write(ctx, e); err != nil {
		s.log.Warn("audit: async write failed", zap.String("sink", s.name), zap.String("event", e.Event), zap.Error(err))
	}
}

// Write enqueues e. It never blocks.
func (s *AsyncSink) Write(_ context.Context, e *domain.AuditLog) error {
	if s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many entries were discarded because the buffer was full.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting entries and waits for queued ones to be written.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
	})
}
