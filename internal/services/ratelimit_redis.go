package services

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

const DefaultRedisKeyPrefix = "lasttime:rl"

// RedisRateLimiter shares fixed-window counters across processes.
type RedisRateLimiter struct {
	log    *logger.Logger
	rdb    goredis.Cmdable
	prefix string
	window time.Duration
	now    func() time.Time
}

func NewRedisRateLimiter(baseLog *logger.Logger, rdb goredis.Cmdable, prefix string, window time.Duration) *RedisRateLimiter {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RedisRateLimiter{
		log:    baseLog.With("service", "RedisRateLimiter"),
		rdb:    rdb,
		prefix: prefix,
		window: window,
		now:    time.Now,
	}
}

func (r *RedisRateLimiter) key(bucket, clientKey string, index int64) string {
	return fmt.Sprintf("%s:%s:%s:%d", r.prefix, bucket, clientKey, index)
}

func (r *RedisRateLimiter) Admit(ctx context.Context, clientKey, bucket string, limit int) (Decision, error) {
	index, resetAt := windowBounds(r.now(), r.window)
	key := r.key(bucket, clientKey, index)

	var incr *goredis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		// expire shortly after the window closes
		p.PExpire(ctx, key, r.window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
