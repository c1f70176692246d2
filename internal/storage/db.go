package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection and the caches for hot reference data
type DB struct {
	conn *sqlx.DB

	modelCache  *LRUCache
	configCache *LRUCache
}

// DBConfig holds database configuration
type DBConfig struct {
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Cache settings
	ModelCacheSize  int
	ModelCacheTTL   time.Duration
	ConfigCacheSize int
	ConfigCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		ModelCacheSize:  500,
		ModelCacheTTL:   15 * time.Minute,
		ConfigCacheSize: 1000,
		ConfigCacheTTL:  5 * time.Minute,
	}
}

// NewDB creates a new database connection with caching
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &DB{
		conn:        conn,
		modelCache:  NewLRUCache(cfg.ModelCacheSize, cfg.ModelCacheTTL),
		configCache: NewLRUCache(cfg.ConfigCacheSize, cfg.ConfigCacheTTL),
	}, nil
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.modelCache.Clear()
	db.configCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health checks the connection and a trivial query
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}
