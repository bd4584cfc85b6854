// Package mfa holds the second-factor code check and the per-account attempt limiter.
package mfa

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultWindow      = 5 * time.Minute
)

var (
	// ErrTooManyAttempts is returned once an account has used every attempt in the current window.
	ErrTooManyAttempts = errors.New("too many MFA attempts")
	// ErrLimiterUnavailable wraps backend failures of a shared limiter.
	ErrLimiterUnavailable = errors.New("mfa limiter unavailable")
)

// AttemptLimiter bounds MFA code attempts per account in an absolute window measured from the first attempt.
type AttemptLimiter interface {
	// CheckAndIncrement consumes one attempt and returns how many remain, or ErrTooManyAttempts.
	CheckAndIncrement(ctx context.Context, accountID string) (remaining int, err error)
	// Clear forgets the account's attempts.
	Clear(ctx context.Context, accountID string) error
}

type attemptRecord struct {
	count int
	first time.Time
}

// MemoryLimiter is the in-process AttemptLimiter. Records live until cleared, pruned or reset by window expiry.
type MemoryLimiter struct {
	mu          sync.Mutex
	m           map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	nowF        func() time.Time
}

// NewMemoryLimiter returns a MemoryLimiter. Non-positive arguments select the defaults (3 attempts, 5 minutes).
func NewMemoryLimiter(maxAttempts int, window time.Duration) *MemoryLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		m:           make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		nowF:        time.Now,
	}
}

func (l *MemoryLimiter) CheckAndIncrement(ctx context.Context, accountID string) (int, error) {
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.m[accountID]
	if ok && now.Sub(rec.first) > l.window {
		delete(l.m, accountID)
		rec, ok = attemptRecord{}, false
	}
	if rec.count >= l.maxAttempts {
		return 0, ErrTooManyAttempts
	}
	if !ok {
		rec.first = now
	}
	rec.count++
	l.m[accountID] = rec
	return l.maxAttempts - rec.count, nil
}

func (l *MemoryLimiter) Clear(ctx context.Context, accountID string) error {
	l.mu.Lock()
	delete(l.m, accountID)
	l.mu.Unlock()
	return nil
}

// Prune drops records whose window has elapsed and returns how many were removed.
func (l *MemoryLimiter) Prune() int {
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, rec := range l.m {
		if now.Sub(rec.first) > l.window {
			delete(l.m, id)
			n++
		}
	}
	return n
}

// RunJanitor calls Prune every interval until ctx is done.
func (l *MemoryLimiter) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Prune()
		}
	}
}
