package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Store struct {
		Backend string `yaml:"backend"` // mysql or clickhouse
		MySQL   struct {
			Host            string        `yaml:"host"`
			Port            int           `yaml:"port"`
			User            string        `yaml:"user"`
			Password        string        `yaml:"password"`
			Database        string        `yaml:"database"`
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MaxIdleConns    int           `yaml:"max_idle_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"mysql"`
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port"`
			Database         string        `yaml:"database"`
			User             string        `yaml:"user"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			AsyncInsert      bool          `yaml:"async_insert"`
			WaitForAsync     bool          `yaml:"wait_for_async_insert"`
			DialTimeout      time.Duration `yaml:"dial_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			WriteTimeout     time.Duration `yaml:"write_timeout"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		} `yaml:"clickhouse"`
	} `yaml:"store"`
	Signals struct {
		ShortWindow int `yaml:"short_window"`
		LongWindow  int `yaml:"long_window"`
		Workers     int `yaml:"workers"`
	} `yaml:"signals"`
	Report struct {
		VolumeWindow        int     `yaml:"volume_window"`
		GainThreshold       float64 `yaml:"gain_threshold"`        // percent
		VolumeSpikeMultiple float64 `yaml:"volume_spike_multiple"` // e.g. 3.0
		TopStocks           int     `yaml:"top_stocks"`
		TopIndustries       int     `yaml:"top_industries"`
		TrailingDays        int     `yaml:"trailing_days"`
		OutputDir           string  `yaml:"output_dir"`
	} `yaml:"report"`
	MarketData struct {
		Enabled        bool          `yaml:"enabled"`
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		Timeout        time.Duration `yaml:"timeout"`
		RequestsPerSec float64       `yaml:"requests_per_sec"`
		MaxRetries     int           `yaml:"max_retries"`
	} `yaml:"marketdata"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend string        `yaml:"backend"` // memory or redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			Password     string        `yaml:"password"`
			DB           int           `yaml:"db"`
			PoolSize     int           `yaml:"pool_size"`
			MinIdleConns int           `yaml:"min_idle_conns"`
			PoolTimeout  time.Duration `yaml:"pool_timeout"`
			Prefix       string        `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			MaxSize         int           `yaml:"max_size"`
			CleanupInterval time.Duration `yaml:"cleanup_interval"`
		} `yaml:"memory"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Schedule struct {
		Enabled  bool   `yaml:"enabled"`
		RunAt    string `yaml:"run_at"`   // wall clock HH:MM
		Timezone string `yaml:"timezone"` // IANA zone name
	} `yaml:"schedule"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
}

// Default returns a configuration populated with working defaults.
// A config file and environment variables override from here.
func Default() *Config {
	c := &Config{Environment: "development"}

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Store.Backend = "mysql"
	c.Store.MySQL.Host = "127.0.0.1"
	c.Store.MySQL.Port = 3306
	c.Store.MySQL.User = "nasdaq_user"
	c.Store.MySQL.Password = "nasdaq_pass"
	c.Store.MySQL.Database = "nasdaq"
	c.Store.MySQL.MaxOpenConns = 25
	c.Store.MySQL.MaxIdleConns = 10
	c.Store.MySQL.ConnMaxLifetime = time.Hour
	c.Store.ClickHouse.Host = "127.0.0.1"
	c.Store.ClickHouse.Port = 9000
	c.Store.ClickHouse.Database = "marketlens"
	c.Store.ClickHouse.User = "default"
	c.Store.ClickHouse.DialTimeout = 5 * time.Second
	c.Store.ClickHouse.ReadTimeout = 30 * time.Second
	c.Store.ClickHouse.WriteTimeout = 30 * time.Second
	c.Store.ClickHouse.MaxExecutionTime = time.Minute

	c.Signals.ShortWindow = 50
	c.Signals.LongWindow = 200
	c.Signals.Workers = 8

	c.Report.VolumeWindow = 30
	c.Report.GainThreshold = 10.0
	c.Report.VolumeSpikeMultiple = 3.0
	c.Report.TopStocks = 20
	c.Report.TopIndustries = 10
	c.Report.TrailingDays = 30
	c.Report.OutputDir = "reports"

	c.MarketData.BaseURL = "https://api.polygon.io"
	c.MarketData.Timeout = 30 * time.Second
	c.MarketData.RequestsPerSec = 0.1
	c.MarketData.MaxRetries = 3

	c.Kafka.Topic = "marketlens.signals"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "snappy"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.BatchSize = 100
	c.Kafka.Producer.Linger = 50 * time.Millisecond
	c.Kafka.Producer.WriteTimeout = 10 * time.Second
	c.Kafka.Producer.ReadTimeout = 10 * time.Second

	c.Cache.Backend = "memory"
	c.Cache.TTL = 10 * time.Minute
	c.Cache.Redis.Host = "localhost"
	c.Cache.Redis.Port = 6379
	c.Cache.Redis.PoolSize = 10
	c.Cache.Redis.MinIdleConns = 5
	c.Cache.Redis.PoolTimeout = 30 * time.Second
	c.Cache.Redis.Prefix = "marketlens"
	c.Cache.Memory.MaxSize = 1000
	c.Cache.Memory.CleanupInterval = 5 * time.Minute

	c.Queue.Workers = 2
	c.Queue.RetryLimit = 3
	c.Queue.RetryDelay = 30 * time.Second

	c.Schedule.RunAt = "17:30"
	c.Schedule.Timezone = "America/New_York"

	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"

	return c
}

// Load reads a YAML configuration file over the defaults.
// An empty path returns validated defaults.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Store.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Store.MySQL.Port = p
		}
	}
	if v := os.Getenv("MYSQL_USER"); v != "" {
		c.Store.MySQL.User = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Store.MySQL.Password = v
	}
	if v := os.Getenv("MYSQL_DATABASE"); v != "" {
		c.Store.MySQL.Database = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Store.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			c.Cache.Redis.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				c.Cache.Redis.Port = p
			}
		} else {
			c.Cache.Redis.Host = v
		}
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// Validate checks if the configuration is valid.
// Window violations are configuration errors and must fail before any computation.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Store.Backend != "mysql" && c.Store.Backend != "clickhouse" {
		return fmt.Errorf("store.backend must be 'mysql' or 'clickhouse', got '%s'", c.Store.Backend)
	}
	if c.Signals.ShortWindow <= 0 || c.Signals.LongWindow <= 0 {
		return fmt.Errorf("signals windows must be positive, got short=%d long=%d",
			c.Signals.ShortWindow, c.Signals.LongWindow)
	}
	if c.Signals.ShortWindow >= c.Signals.LongWindow {
		return fmt.Errorf("signals.short_window (%d) must be less than signals.long_window (%d)",
			c.Signals.ShortWindow, c.Signals.LongWindow)
	}
	if c.Signals.Workers <= 0 {
		return fmt.Errorf("signals.workers must be positive")
	}
	if c.Report.VolumeWindow <= 0 {
		return fmt.Errorf("report.volume_window must be positive")
	}
	if c.Report.VolumeSpikeMultiple <= 0 {
		return fmt.Errorf("report.volume_spike_multiple must be positive")
	}
	if c.Report.TopStocks <= 0 || c.Report.TopIndustries <= 0 {
		return fmt.Errorf("report top counts must be positive")
	}
	if c.Report.TrailingDays < 1 {
		return fmt.Errorf("report.trailing_days must be at least 1")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	if c.Queue.Enabled && c.Cache.Backend != "redis" {
		return fmt.Errorf("queue requires cache.backend 'redis'")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.MarketData.Enabled {
		if c.MarketData.APIKey == "" {
			return fmt.Errorf("marketdata.api_key is required when marketdata is enabled")
		}
		if c.MarketData.BaseURL == "" {
			return fmt.Errorf("marketdata.base_url is required when marketdata is enabled")
		}
	}
	if c.Schedule.Enabled {
		if _, err := time.Parse("15:04", c.Schedule.RunAt); err != nil {
			return fmt.Errorf("schedule.run_at must be HH:MM, got '%s'", c.Schedule.RunAt)
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}
