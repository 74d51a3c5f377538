package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Levels are kept in milli-tokens.
// ARGV: refill per ms (milli-tokens), capacity (milli-tokens), now (ms), cost (milli-tokens).
// Returns {allowed, wait_ms}.
const bucketScript = `
local refill = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local level, last = capacity, now
local saved = redis.call("HMGET", KEYS[1], "level", "ts")
if saved[1] and saved[2] then
  level = tonumber(saved[1])
  last = tonumber(saved[2])
end
if now > last then
  level = math.min(capacity, level + (now - last) * refill)
end

local ok, wait = 0, 0
if level >= cost then
  level = level - cost
  ok = 1
else
  wait = math.ceil((cost - level) / refill)
end

redis.call("HSET", KEYS[1], "level", level, "ts", now)
redis.call("PEXPIRE", KEYS[1], math.ceil(capacity / refill) + 1000)
return {ok, wait}
`

const (
	defaultPrefix = "auction:ratelimit:"
	milli         = 1000
)

// Limiter is a token bucket per key shared through redis.
type Limiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64 // tokens per second
	burst  float64
	logger *slog.Logger
	script *redis.Script
	now    func() time.Time
}

// NewRedisRateLimiter builds a limiter refilling rate tokens per second up to burst.
// A nil client or a non-positive rate/burst disables it.
func NewRedisRateLimiter(rdb *redis.Client, logger *slog.Logger, prefix string, rate float64, burst float64) *Limiter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(bucketScript),
		now:    time.Now,
	}
}

// Enabled reports whether the limiter will ever reject.
func (r *Limiter) Enabled() bool {
	return r != nil && r.rdb != nil && r.rate > 0 && r.burst > 0
}

// Allow takes one token for key. When the bucket is empty it returns false and the
// wait until a token is available.
func (r *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if !r.Enabled() {
		return true, 0, nil
	}
	// milli-tokens per ms equals tokens per second.
	refill := r.rate
	capacity := int64(r.burst * milli)
	vals, err := r.script.Run(ctx, r.rdb, []string{r.prefix + key},
		refill, capacity, r.now().UnixMilli(), milli).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}
	if len(vals) != 2 {
		return false, 0, fmt.Errorf("ratelimit: unexpected reply %v", vals)
	}

	allowed := vals[0] == 1
	wait := time.Duration(vals[1]) * time.Millisecond
	if !allowed && r.logger != nil {
		r.logger.Debug("rate limited", slog.String("key", key), slog.Duration("wait", wait))
	}
	return allowed, wait, nil
}
