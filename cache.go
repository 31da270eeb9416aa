package idempotence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the key/value contract the middleware coordinates against.
// Get reports absence with ok == false. Set stores value under key for at
// most ttl. Eviction policy, capacity and persistence are entirely the
// implementation's responsibility.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type memoryEntry struct {
	value    string
	expireAt time.Time
}

type memoryCache struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryCache creates an in-process Cache suitable for tests and
// single-instance deployments. Expired entries are dropped lazily on Get.
func NewMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get fetches the value stored under key, reporting expired entries as
// absent.
func (m *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if m.now().After(entry.expireAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key for ttl, overwriting any previous entry.
func (m *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expireAt: m.now().Add(ttl)}

	return nil
}

type redisCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisCacheOption is the signature for functional options for the Redis
// cache.
type RedisCacheOption func(*redisCache)

// WithKeyPrefix namespaces every key written by the Redis cache, e.g.
// with a service name, so deployments sharing one Redis do not collide.
func WithKeyPrefix(prefix string) RedisCacheOption {
	return func(rc *redisCache) {
		rc.keyPrefix = prefix
	}
}

// NewRedisCache creates a Cache backed by Redis to share completion state
// across processes.
func NewRedisCache(client *redis.Client, opts ...RedisCacheOption) *redisCache {
	c := &redisCache{
		client: client,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Get fetches the value stored under key, mapping redis.Nil to absence.
func (c *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get the key %q from redis: %w", key, err)
	}

	return res, true, nil
}

// Set stores value under key for ttl, overwriting any previous entry.
func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set the key %q in redis: %w", key, err)
	}

	return nil
}

// SetNX stores value only if key is absent, reporting whether the write
// happened. The middleware itself performs a plain check-then-act, so two
// concurrent requests with the same key can both run the handler; callers
// wanting to close that window can mark keys with SetNX before
// dispatching the operation.
func (c *redisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	res, err := c.client.SetNX(ctx, c.keyPrefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set the key %q in redis: %w", key, err)
	}

	return res, nil
}
