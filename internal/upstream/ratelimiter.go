package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript atomically checks and increments a sliding per-second and
// per-minute counter pair for one account, returning 1 if the call is
// allowed and 0 if either window is exhausted.
const rateLimitScript = `
local sec_key = KEYS[1]
local min_key = KEYS[2]
local sec_limit = tonumber(ARGV[1])
local min_limit = tonumber(ARGV[2])

local sec_count = tonumber(redis.call("GET", sec_key) or "0")
local min_count = tonumber(redis.call("GET", min_key) or "0")

if sec_count >= sec_limit or min_count >= min_limit then
	return 0
end

redis.call("INCR", sec_key)
redis.call("EXPIRE", sec_key, 1)
redis.call("INCR", min_key)
redis.call("EXPIRE", min_key, 60)
return 1
`

// RateLimiter paces calls to the upstream ad platform per account, using a
// Redis Lua script so the check-and-increment is atomic across every server
// and worker process hitting the same account concurrently.
type RateLimiter struct {
	client        *redis.Client
	script        *redis.Script
	perSecond     int
	perMinute     int
}

// NewRateLimiter creates a RateLimiter backed by the given Redis client.
func NewRateLimiter(client *redis.Client, perSecond, perMinute int) *RateLimiter {
	return &RateLimiter{
		client:    client,
		script:    redis.NewScript(rateLimitScript),
		perSecond: perSecond,
		perMinute: perMinute,
	}
}

// Allow reports whether a call for accountID may proceed right now.
func (r *RateLimiter) Allow(ctx context.Context, accountID string) (bool, error) {
	secKey := fmt.Sprintf("adcontrol:ratelimit:%s:sec", accountID)
	minKey := fmt.Sprintf("adcontrol:ratelimit:%s:min", accountID)

	res, err := r.script.Run(ctx, r.client, []string{secKey, minKey}, r.perSecond, r.perMinute).Int()
	if err != nil {
		return false, fmt.Errorf("upstream: rate limit check: %w", err)
	}
	return res == 1, nil
}

// Wait blocks, polling Allow, until a call slot opens or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, accountID string) error {
	for {
		ok, err := r.Allow(ctx, accountID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
