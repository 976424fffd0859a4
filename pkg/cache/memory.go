package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// entry is one cached value with its expiry and last access time. Access
// time drives LRU eviction when the cache is full.
type entry struct {
	value     interface{}
	expiresAt time.Time
	touched   time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryCache implements Service in process memory with LRU eviction.
// It is the default backend when redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]*entry
	maxSize int
	janitor *time.Ticker
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	mc := &MemoryCache{
		items:   make(map[string]*entry),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
	}

	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.items) >= mc.maxSize {
		mc.evictOldest()
	}

	now := time.Now()
	expiresAt := now.Add(expiration)
	if expiration <= 0 {
		expiresAt = now.Add(7 * 24 * time.Hour) // default 7 days
	}

	mc.items[key] = &entry{value: value, expiresAt: expiresAt, touched: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.items[key]
	if !ok || e.expired() {
		if ok {
			delete(mc.items, key)
		}
		return ErrCacheMiss
	}
	e.touched = time.Now()

	if strPtr, ok := dest.(*string); ok {
		if str, ok := e.value.(string); ok {
			*strPtr = str
			return nil
		}
	}
	if anyPtr, ok := dest.(*interface{}); ok {
		*anyPtr = e.value
		return nil
	}

	// Typed destinations copy through JSON, matching the redis backend.
	buf, err := json.Marshal(e.value)
	if err != nil {
		return fmt.Errorf("cache: marshal stored value: %w", err)
	}
	if err := json.Unmarshal(buf, dest); err != nil {
		return fmt.Errorf("cache: unmarshal stored value: %w", err)
	}
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		delete(mc.items, key)
	}
	return nil
}

// TryLock takes the key when it is free. The in-process lock only guards
// against overlapping runs inside one process; cross-process runs need the
// redis backend.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if e, ok := mc.items[key]; ok && !e.expired() {
		return false, nil
	}

	now := time.Now()
	mc.items[key] = &entry{value: "locked", expiresAt: now.Add(ttl), touched: now}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// evictOldest drops the least recently touched entry. Callers hold mu.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time

	for key, e := range mc.items {
		if oldestKey == "" || e.touched.Before(oldest) {
			oldest = e.touched
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.items, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.janitor.C {
		mc.mu.Lock()
		now := time.Now()
		for key, e := range mc.items {
			if now.After(e.expiresAt) {
				delete(mc.items, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the background sweeper.
func (mc *MemoryCache) Close() error {
	if mc.janitor != nil {
		mc.janitor.Stop()
	}
	return nil
}
