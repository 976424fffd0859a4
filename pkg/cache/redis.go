package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service on redis. The same client is shared with
// the job queue, so one connection pool serves both.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redis and verifies the connection with a ping.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		PoolTimeout:  30 * time.Second,
		MinIdleConns: 5,
		Prefix:       "marketlens",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.Prefix}, nil
}

// key prepends the configured prefix so cache entries and queue keys can
// share one redis database without colliding.
func (rc *RedisCache) key(k string) string {
	return rc.prefix + ":" + k
}

func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, rc.key(key), data, expiration).Err()
}

func (rc *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}

func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = rc.key(k)
	}
	return rc.client.Unlink(ctx, namespaced...).Err()
}

// TryLock takes a SETNX lock. Every API replica and the scheduler share it,
// so only one scan runs per key at a time.
func (rc *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return rc.client.SetNX(ctx, rc.key(key), "locked", ttl).Result()
}

func (rc *RedisCache) Unlock(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

// Client exposes the underlying redis client for components that share the
// connection pool.
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// Close closes the redis connection pool.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// encodeValue stores strings as-is and everything else as JSON.
func encodeValue(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}
