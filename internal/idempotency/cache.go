package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the capability the coordinator needs from its backend: atomic
// set-if-absent with expiry, plain get, set with expiry, and delete.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisCache backs the coordinator with a shared Redis instance so the
// deduplication window spans all replicas.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (c *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *RedisCache) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.SetEx(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// MemoryCache is a process-local Cache for tests and single-instance
// development. Expiry is checked lazily on read, matching how the Redis
// TTLs are observed by callers.
type MemoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expired(key) {
		return "", ErrCacheMiss
	}
	val, ok := c.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (c *MemoryCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.expired(key) {
		if _, ok := c.values[key]; ok {
			return false, nil
		}
	}
	c.values[key] = value
	c.expires[key] = time.Now().Add(ttl)
	return true, nil
}

func (c *MemoryCache) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
	c.expires[key] = time.Now().Add(ttl)
	return nil
}

func (c *MemoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.values, key)
	delete(c.expires, key)
	return nil
}

// expired reports and lazily cleans up a stale key. Caller holds the lock.
func (c *MemoryCache) expired(key string) bool {
	exp, ok := c.expires[key]
	if !ok || time.Now().Before(exp) {
		return false
	}
	delete(c.values, key)
	delete(c.expires, key)
	return true
}
