package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
)

// Lua script for the atomic fixed-window increment. Setting the expiry in
// the same server-side step as the first increment keeps increment-and-expire
// atomic under concurrent checks from multiple gateway instances.
const fixedWindowLuaScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

var fixedWindowScript = redis.NewScript(fixedWindowLuaScript)

// RedisStore is the distributed fixed-window counter store shared by all
// gateway instances. Each call carries its own short timeout so a slow store
// degrades to the in-process fallback instead of stalling the request.
type RedisStore struct {
	client       redis.UniversalClient
	keyPrefix    string
	checkTimeout time.Duration
}

// NewRedisStore creates a store over the given Redis client.
func NewRedisStore(client redis.UniversalClient, checkTimeout time.Duration) *RedisStore {
	if checkTimeout <= 0 {
		checkTimeout = constants.RedisCheckTimeout
	}
	return &RedisStore{
		client:       client,
		keyPrefix:    constants.RateLimitKeyPrefix,
		checkTimeout: checkTimeout,
	}
}

// Check implements ratelimit.Store. The counter key embeds the bucket index
// so a new window always starts from a fresh key; the old one expires via
// its TTL of one window length.
func (s *RedisStore) Check(ctx context.Context, key string, limit int, window time.Duration) (domain.Result, error) {
	now := time.Now()
	bucket, resetAt := domain.WindowBounds(now, window)
	windowKey := fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, bucket)

	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	count, err := fixedWindowScript.Run(ctx, s.client, []string{windowKey}, window.Milliseconds()).Int64()
	if err != nil {
		return domain.Result{}, fmt.Errorf("redis fixed-window check: %w", err)
	}

	return domain.Evaluate(count, limit, resetAt, now), nil
}
