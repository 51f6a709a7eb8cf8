// Package dedup implements the Redis fast-path cache in front of the
// content-addressed Dedup Index (SPEC_FULL.md §6.8): every persisted layer
// keys on a SHA-256 natural key, and the authoritative check is always a
// Postgres lookup. Redis only shortens the common case — a retry storm or a
// reprocessed input hitting the same natural key repeatedly — without
// changing correctness when it is absent or cold.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache is a minimal TTL key/value store for recently-seen natural keys
// (correlation IDs and content hashes). A miss here is never treated as
// authoritative absence: callers must fall back to the Dedup Index's
// Postgres lookup before concluding a key is new.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache backs Cache with Redis. It is purely an accelerator: callers
// that construct one with an empty addr get a NoopCache instead, so the
// absence of REDIS_ADDR degrades to DB-only lookups without any special
// casing at call sites.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to addr (e.g. "localhost:6379") and pings it to
// fail fast on a bad configuration rather than on the first lookup.
func NewRedisCache(addr string) (*RedisCache, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{client: c}, nil
}

// Get reports (value, found, error). found is false on a cache miss, which
// callers must treat as "check the Dedup Index", not as "key is new".
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set caches value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache is always a miss. It is the Cache used when REDIS_ADDR is
// unset, so every lookup falls straight through to the Dedup Index.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (NoopCache) Set(context.Context, string, string, time.Duration) error { return nil }

// CorrelationKey and ContentHashKey namespace the two kinds of natural key
// this cache accelerates, so a correlation ID and a content hash that
// happen to collide as raw strings never collide as cache keys.
func CorrelationKey(stage string, correlationID string) string {
	return "corr:" + stage + ":" + correlationID
}

func ContentHashKey(kind string, hash string) string {
	return "hash:" + kind + ":" + hash
}

// Index is the authoritative, content-addressed Dedup Index: a lookup from
// a SHA-256 natural key to the ID of the row that already owns it, backed
// by Postgres per spec.md's "natural key at every persisted layer" rule.
// Implementations live alongside the entity they dedupe (documents,
// chunks, images) and satisfy this interface so SeenBefore can front any
// of them with the same Redis fast path.
type Index interface {
	Lookup(ctx context.Context, kind, hash string) (id string, found bool, err error)
}

// SeenBefore checks cache first, falling back to idx (the Postgres Dedup
// Index) on a miss, and populates cache on the way back out so the next
// lookup for the same hash is a single Redis round trip instead of a query.
func SeenBefore(ctx context.Context, cache Cache, idx Index, kind, hash string, ttl time.Duration) (id string, found bool, err error) {
	key := ContentHashKey(kind, hash)
	if cached, ok, err := cache.Get(ctx, key); err == nil && ok {
		return cached, true, nil
	}
	id, found, err = idx.Lookup(ctx, kind, hash)
	if err != nil {
		return "", false, err
	}
	if found {
		_ = cache.Set(ctx, key, id, ttl)
	}
	return id, found, nil
}
