// Package cache provides a Redis-backed read-through cache for upstream ad
// platform reads, mirroring the original service's @cached decorator: wrap a
// function call, serve a hit from Redis, fall back to calling through (and
// repopulating) on a miss, and degrade to calling through unconditionally
// when Redis is unreachable or simply not configured. There is no in-process
// fallback store — an unreachable Redis just means every call is a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ignite/adcontrol/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Cache is a namespaced, TTL'd JSON cache over one Redis client. A nil
// *Cache (or one built with a nil client) is valid and behaves as disabled:
// every Get misses and every Set is a no-op, so callers never need a
// separate "is caching on" branch.
type Cache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// New creates a Cache under the given namespace with a default TTL. client
// may be nil, in which case the Cache is permanently disabled.
func New(client *redis.Client, namespace string, ttl time.Duration) *Cache {
	return &Cache{client: client, namespace: namespace, ttl: ttl}
}

// Enabled reports whether this Cache has a usable Redis client.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Key joins parts into one cache key under the Cache's namespace, mirroring
// the original cache_key(prefix, *args) helper. Safe to call on a disabled
// (nil or clientless) Cache since the result is only ever used when Enabled.
func (c *Cache) Key(parts ...string) string {
	if c == nil {
		return strings.Join(parts, ":")
	}
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Get reads key and unmarshals it into dest, reporting whether it was a hit.
// Any Redis or decode error is treated as a miss and logged, never returned
// to the caller — a cache failure must never fail the read it's accelerating.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Warn("cache: read failed, treating as miss", "key", key, "error", err.Error())
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Warn("cache: decode failed, treating as miss", "key", key, "error", err.Error())
		return false
	}
	return true
}

// Set stores value under key with the Cache's default TTL. Failures are
// logged and swallowed for the same reason Get swallows them.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("cache: encode failed, not caching", "key", key, "error", err.Error())
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.Warn("cache: write failed", "key", key, "error", err.Error())
	}
}

// InvalidatePrefix deletes every key under prefix (itself joined with Key),
// for callers that mutate upstream state (pause/resume/budget change) and
// need the next read to bypass a stale cached snapshot.
func (c *Cache) InvalidatePrefix(ctx context.Context, parts ...string) int {
	if !c.Enabled() {
		return 0
	}
	pattern := c.Key(parts...) + "*"
	deleted := 0
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err == nil {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("cache: invalidate scan failed", "pattern", pattern, "error", err.Error())
	}
	return deleted
}

// Wrap implements the read-through pattern: serve key from c on a hit, else
// call fn, cache its result, and return it. fn's error is never cached and
// is returned to the caller unchanged.
func Wrap[T any](ctx context.Context, c *Cache, key string, fn func() (T, error)) (T, error) {
	var out T
	if c.Get(ctx, key, &out) {
		return out, nil
	}
	out, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(ctx, key, out)
	return out, nil
}
