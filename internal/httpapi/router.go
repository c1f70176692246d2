package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"modelrouter/internal/budget"
	"modelrouter/internal/config"
	"modelrouter/internal/health"
	"modelrouter/internal/logging"
	"modelrouter/internal/providers"
	"modelrouter/internal/router"
	"modelrouter/internal/storage"
)

// Dependencies aggregates all services the HTTP layer needs, plus the
// resources main must release on shutdown.
type Dependencies struct {
	Router  *router.Router
	DB      *storage.DB
	Redis   *redis.Client
	Factory *providers.Factory
	Sink    logging.Sink
}

// NewRouter creates an HTTP mux with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ModelCacheSize:  cfg.Cache.ModelCacheSize,
		ModelCacheTTL:   cfg.Cache.ModelCacheTTL,
		ConfigCacheSize: cfg.Cache.ConfigCacheSize,
		ConfigCacheTTL:  cfg.Cache.ConfigCacheTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := storage.NewRedisClient(storage.RedisConfig{
		Address:      cfg.Redis.Address,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	encryption, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	factory := providers.NewFactory()
	catalog := storage.NewCatalog(db, encryption, factory)

	ledger := budget.NewLedger(storage.NewBudgetRepository(db), redisClient)
	monitor := health.NewMonitor(storage.NewHealthRepository(db))

	var sink logging.Sink
	if cfg.UsageSink.Enabled {
		sink = logging.NewRedisSink(redisClient, storage.NewUsageRepository(db), logging.RedisSinkConfig{
			QueueKey:      cfg.UsageSink.QueueKey,
			MaxSize:       cfg.UsageSink.MaxSize,
			BatchSize:     cfg.UsageSink.BatchSize,
			FlushInterval: cfg.UsageSink.FlushInterval,
		})
	} else {
		sink = logging.NewNoopSink()
	}

	modelRouter := router.NewRouter(catalog, catalog, ledger, monitor, sink, router.Options{
		MaxRetries:        cfg.Router.MaxRetries,
		BaseDelay:         cfg.Router.BaseDelay,
		EnableFallback:    cfg.Router.EnableFallback,
		EnableHealthCheck: cfg.Router.EnableHealthCheck,
	})

	deps := &Dependencies{
		Router:  modelRouter,
		DB:      db,
		Redis:   redisClient,
		Factory: factory,
		Sink:    sink,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/execute", deps.handleExecute)
	mux.HandleFunc("/health", deps.handleHealth)

	return mux, deps, nil
}
