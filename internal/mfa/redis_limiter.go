package mfa

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndIncrScript returns -1 when the budget is spent, otherwise the new count.
// The key expires one window after the first attempt, which makes the window absolute.
var checkAndIncrScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return -1
end
n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return n
`)

// RedisLimiter is an AttemptLimiter shared by every instance pointing at the same Redis.
type RedisLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	window      time.Duration
	prefix      string
}

// NewRedisLimiter returns a RedisLimiter. Non-positive arguments select the defaults (3 attempts, 5 minutes).
func NewRedisLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *RedisLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{redis: client, maxAttempts: maxAttempts, window: window, prefix: "mfa:att:"}
}

func (l *RedisLimiter) key(accountID string) string {
	return l.prefix + accountID
}

func (l *RedisLimiter) CheckAndIncrement(ctx context.Context, accountID string) (int, error) {
	n, err := checkAndIncrScript.Run(ctx, l.redis, []string{l.key(accountID)}, l.maxAttempts, l.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if n < 0 {
		return 0, ErrTooManyAttempts
	}
	return l.maxAttempts - int(n), nil
}

func (l *RedisLimiter) Clear(ctx context.Context, accountID string) error {
	if err := l.redis.Del(ctx, l.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
