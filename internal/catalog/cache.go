package catalog

import (
	"context"
	"sync"
	"time"

	"recordsrecord/catalogservice/internal/metrics"
)

const defaultGenreCacheTTL = 7 * 24 * time.Hour

// GenreCache memoizes resolved genre labels by release-group id. The first
// tier is a process-wide map; an optional Redis tier shares entries across
// replicas and survives restarts. The in-memory tier has no eviction since
// genre labels are tiny and low-cardinality, but the Redis tier carries a TTL
// so entries eventually refresh.
type GenreCache struct {
	disabled bool
	ttl      time.Duration
	redis    *RedisGenreBackend

	mu      sync.RWMutex
	entries map[string]string
}

type GenreCacheOption func(*GenreCache)

func WithRedisBackend(backend *RedisGenreBackend) GenreCacheOption {
	return func(c *GenreCache) {
		c.redis = backend
	}
}

func WithGenreCacheTTL(ttl time.Duration) GenreCacheOption {
	return func(c *GenreCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithGenreCacheDisabled(disabled bool) GenreCacheOption {
	return func(c *GenreCache) {
		c.disabled = disabled
	}
}

func NewGenreCache(opts ...GenreCacheOption) *GenreCache {
	cache := &GenreCache{
		ttl:     defaultGenreCacheTTL,
		entries: make(map[string]string),
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Get returns the cached genre for a release-group id, consulting memory
// first and Redis second. A Redis hit is copied into the memory tier.
func (c *GenreCache) Get(ctx context.Context, id string) (string, bool) {
	if c.disabled || id == "" {
		return "", false
	}

	c.mu.RLock()
	genre, ok := c.entries[id]
	c.mu.RUnlock()
	if ok {
		metrics.GenreCacheHitsTotal.Inc()
		return genre, true
	}

	if c.redis != nil {
		genre, found, err := c.redis.Get(ctx, id)
		if err == nil && found {
			metrics.GenreCacheHitsTotal.Inc()
			c.mu.Lock()
			c.entries[id] = genre
			c.mu.Unlock()
			return genre, true
		}
	}

	metrics.GenreCacheMissesTotal.Inc()
	return "", false
}

// Set stores a resolved genre under the release-group id. Writes for the same
// id are idempotent, so concurrent resolutions racing here are harmless.
func (c *GenreCache) Set(ctx context.Context, id, genre string) {
	if c.disabled || id == "" {
		return
	}

	c.mu.Lock()
	c.entries[id] = genre
	c.mu.Unlock()

	if c.redis != nil {
		_ = c.redis.Set(ctx, id, genre, c.ttl)
	}
}

// Len reports the number of in-memory entries.
func (c *GenreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
