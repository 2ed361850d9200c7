package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a sliding-window limiter on a redis sorted
// set, one set per key, each member a unique request marker with a
// timestamp score. A Lua script makes the clean-count-add sequence
// atomic, so concurrent callers of the same key cannot both take the
// last slot even across server instances.
type RedisLimiter struct {
	client *redis.Client
	logger *slog.Logger
	script *redis.Script
}

// Lua script for atomic sliding window admission.
// 1. Drop entries older than the window
// 2. Count what remains
// 3. Under the limit: add this request, return allowed + remaining
// 4. At the limit: deny, return the oldest entry's score so the
//    caller can compute when a slot frees up
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, now}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, 0, tonumber(oldest[2])}
`)

func NewRedisLimiter(client *redis.Client, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		logger: logger,
		script: slidingWindowScript,
	}
}

func rlKey(key string) string {
	return "rl:" + key
}

// Check runs the sliding-window script for key. Redis failures honor
// the policy's FailMode.
func (rl *RedisLimiter) Check(ctx context.Context, key string, policy Policy) Result {
	if policy.Limit <= 0 {
		return Result{Allowed: true}
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano()%100000)

	vals, err := rl.script.Run(ctx, rl.client, []string{rlKey(key)},
		now.UnixMilli(), policy.Window.Milliseconds(), policy.Limit, member,
	).Int64Slice()
	if err != nil || len(vals) != 3 {
		rl.logger.Error("rate limiter script failed",
			"error", err,
			"key", key,
			"fail_open", policy.FailMode == FailOpen,
		)
		return Result{
			Allowed: policy.FailMode == FailOpen,
			ResetAt: now.Add(policy.Window),
		}
	}

	allowed := vals[0] == 1
	remaining := int(vals[1])
	// vals[2] is the score anchoring the window: this request's own
	// timestamp when allowed, the oldest held slot when denied.
	resetAt := time.UnixMilli(vals[2]).Add(policy.Window)

	if !allowed {
		rl.logger.Debug("rate limited", "key", key, "limit", policy.Limit)
	}

	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}
