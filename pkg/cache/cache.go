// Package cache provides an optional Redis-backed lookup cache for slow
// external evidence: whois records and URL expansions. A nil *Cache is valid
// and means caching is disabled, so call sites never need to branch.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long cached lookups stay fresh. Whois data and
// redirect targets change rarely, but phishing infrastructure churns fast
// enough that a day is the sensible ceiling.
const DefaultTTL = 24 * time.Hour

// Cache wraps a Redis client with a fixed TTL.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to Redis at addr. An empty addr returns nil, which disables
// caching everywhere it is passed.
func New(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// Get returns the cached value and whether it was present. Misses and Redis
// errors look the same to callers: do the lookup yourself.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores a value best-effort; a dead Redis never fails a detection.
func (c *Cache) Set(ctx context.Context, key, value string) {
	if c == nil {
		return
	}
	c.rdb.Set(ctx, key, value, c.ttl)
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// WhoisKey namespaces a cached raw whois record.
func WhoisKey(domain string) string { return "phishguard:whois:" + domain }

// ExpansionKey namespaces a cached URL expansion result.
func ExpansionKey(url string) string { return "phishguard:expand:" + url }
