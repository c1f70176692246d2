package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the router service.
type Config struct {
	HTTPPort      string
	EncryptionKey string
	Database      DatabaseConfig
	Cache         CacheConfig
	Redis         RedisConfig
	Router        RouterConfig
	UsageSink     UsageSinkConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds cache settings for hot reference data
type CacheConfig struct {
	ModelCacheSize  int
	ModelCacheTTL   time.Duration
	ConfigCacheSize int
	ConfigCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RouterConfig holds fallback chain execution settings
type RouterConfig struct {
	MaxRetries        int           // rate-limit retries shared across the chain
	BaseDelay         time.Duration // first backoff, doubled per retry
	EnableFallback    bool
	EnableHealthCheck bool
	RequestTimeout    time.Duration // default timeout for provider requests
}

// UsageSinkConfig holds configuration for the Redis-buffered usage sink
type UsageSinkConfig struct {
	Enabled       bool
	QueueKey      string        // Redis list key
	MaxSize       int64         // entries beyond this are dropped oldest-first
	BatchSize     int           // max entries per flush
	FlushInterval time.Duration // how often the worker drains the buffer
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encryptionKey := os.Getenv("ENCRYPTION_KEY")
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	cfg := &Config{
		HTTPPort:      getEnvString("HTTP_PORT", "8080"),
		EncryptionKey: encryptionKey,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			ModelCacheSize:  getEnvInt("CACHE_MODEL_SIZE", 500),
			ModelCacheTTL:   getEnvDuration("CACHE_MODEL_TTL", 15*time.Minute),
			ConfigCacheSize: getEnvInt("CACHE_CONFIG_SIZE", 1000),
			ConfigCacheTTL:  getEnvDuration("CACHE_CONFIG_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Router: RouterConfig{
			MaxRetries:        getEnvInt("ROUTER_MAX_RETRIES", 3),
			BaseDelay:         getEnvDuration("ROUTER_BASE_DELAY", time.Second),
			EnableFallback:    getEnvBool("ROUTER_ENABLE_FALLBACK", true),
			EnableHealthCheck: getEnvBool("ROUTER_ENABLE_HEALTH_CHECK", true),
			RequestTimeout:    getEnvDuration("ROUTER_REQUEST_TIMEOUT", 60*time.Second),
		},
		UsageSink: UsageSinkConfig{
			Enabled:       getEnvBool("USAGE_SINK_ENABLED", true),
			QueueKey:      getEnvString("USAGE_SINK_QUEUE_KEY", "router:usage"),
			MaxSize:       getEnvInt64("USAGE_SINK_MAX_SIZE", 100_000),
			BatchSize:     getEnvInt("USAGE_SINK_BATCH_SIZE", 500),
			FlushInterval: getEnvDuration("USAGE_SINK_FLUSH_INTERVAL", 5*time.Second),
		},
	}

	return cfg, nil
}
