package blob

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long cached blobs stay fresh. Template blobs
// change only on re-upload, which writes through the cache anyway.
const DefaultCacheTTL = 15 * time.Minute

// Cache is a byte cache used by CachedStore. Get returns (nil, false) on miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte)
}

// MemoryCache is a process-local Cache for single-instance deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration
}

type memoryCacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL. A zero ttl
// falls back to DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{entries: make(map[string]memoryCacheEntry), ttl: ttl}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, data []byte) {
	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{data: data, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// RedisCache is a Redis-backed Cache for multi-instance deployments.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a cache backed by the Redis instance at addr.
func NewRedisCache(addr string, ttl time.Duration) (*RedisCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opt, err := redis.ParseURL(addr)
	if err != nil {
		// Plain host:port addresses are accepted too.
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("RedisCache ping failed", "error", err, "addr", addr)
		return nil, err
	}
	slog.Debug("RedisCache initialized", "addr", addr, "ttl", ttl)
	return &RedisCache{client: client, ttl: ttl, prefix: "docpipe:blob:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("RedisCache Get failed, treating as miss", "error", err, "key", key)
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		slog.Warn("RedisCache Set failed", "error", err, "key", key)
	}
}

// CachedStore wraps a Store with a read-through cache. Saves write through
// so a re-uploaded template is visible immediately.
type CachedStore struct {
	backend Store
	cache   Cache
}

// NewCachedStore wraps backend with cache.
func NewCachedStore(backend Store, cache Cache) *CachedStore {
	return &CachedStore{backend: backend, cache: cache}
}

func (s *CachedStore) Load(ctx context.Context, path string) ([]byte, error) {
	if data, ok := s.cache.Get(ctx, path); ok {
		slog.Debug("CachedStore Load cache hit", "path", path)
		return data, nil
	}
	data, err := s.backend.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, path, data)
	return data, nil
}

func (s *CachedStore) Save(ctx context.Context, path string, data []byte) error {
	if err := s.backend.Save(ctx, path, data); err != nil {
		return err
	}
	s.cache.Set(ctx, path, data)
	return nil
}
