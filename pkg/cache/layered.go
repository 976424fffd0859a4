package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LayeredCache combines an in-process cache with redis. Report reads hit
// the local layer first, so repeated fetches of the same day skip the
// network; writes go through to redis so every replica sees them.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
}

// NewLayeredCache wraps the given redis cache with a local layer.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: redisCache,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, value, expiration)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}

	// Backfill the local layer so the next read stays in process.
	_ = lc.local.Set(ctx, key, dest, 0)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.local.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

// TryLock delegates to redis so the lock holds across processes.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

// Client exposes the redis client of the remote layer.
func (lc *LayeredCache) Client() *redis.Client {
	return lc.remote.Client()
}

// Close stops the local sweeper and closes the redis pool.
func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}
