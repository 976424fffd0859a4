package cache

import "time"

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// RedisOption overrides one redis setting.
type RedisOption func(*RedisConfig)

// WithRedisAddr sets the redis host and port.
func WithRedisAddr(host string, port int) RedisOption {
	return func(c *RedisConfig) {
		c.Host = host
		c.Port = port
	}
}

// WithRedisPassword sets the redis password.
func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
	}
}

// WithRedisDB selects the redis database number.
func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithRedisPool sets connection pool sizing.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix sets the key namespace. Empty values keep the default so
// callers can pass config fields through without guarding.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		if prefix != "" {
			c.Prefix = prefix
		}
	}
}

// MemoryConfig holds settings for the in-process backend.
type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// MemoryOption overrides one memory cache setting.
type MemoryOption func(*MemoryConfig)

// WithMemoryMaxSize caps the number of entries before LRU eviction kicks in.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		c.MaxSize = size
	}
}

// WithMemoryCleanup sets how often expired entries are swept.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		c.CleanupInterval = interval
	}
}

// LayeredConfig holds settings for the two-level cache.
type LayeredConfig struct {
	MemoryMaxSize int
}

// LayeredOption overrides one layered cache setting.
type LayeredOption func(*LayeredConfig)

// WithLayeredMemorySize caps the local layer's entry count.
func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) {
		c.MemoryMaxSize = size
	}
}
