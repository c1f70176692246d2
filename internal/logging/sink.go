package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"modelrouter/internal/models"
)

// Sink receives usage log entries from the router. Enqueue must be cheap and
// never block the request path; persistence happens asynchronously.
type Sink interface {
	Enqueue(entry *models.UsageLogEntry) error
}

// UsageStore persists batches of usage log entries.
type UsageStore interface {
	InsertBatch(ctx context.Context, entries []*models.UsageLogEntry) error
}

// NoopSink discards usage entries.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(entry *models.UsageLogEntry) error {
	return nil
}

// RedisSinkConfig holds configuration for the Redis-buffered sink.
type RedisSinkConfig struct {
	QueueKey      string        // Redis list key
	MaxSize       int64         // entries beyond this are dropped oldest-first
	BatchSize     int           // max entries per flush
	FlushInterval time.Duration // how often the worker drains the buffer
}

// DefaultRedisSinkConfig returns sensible defaults for the usage buffer.
func DefaultRedisSinkConfig() RedisSinkConfig {
	return RedisSinkConfig{
		QueueKey:      "router:usage",
		MaxSize:       100_000,
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// RedisSink buffers usage entries in a Redis list and drains them to a
// durable store in batches. Losing a buffered entry on crash is accepted;
// usage logging is best-effort by design.
type RedisSink struct {
	client *redis.Client
	store  UsageStore
	cfg    RedisSinkConfig
	logger *Logger

	done chan struct{}
	stop chan struct{}
}

// NewRedisSink creates the sink and starts its flush worker.
func NewRedisSink(client *redis.Client, store UsageStore, cfg RedisSinkConfig) *RedisSink {
	if cfg.QueueKey == "" {
		cfg.QueueKey = "router:usage"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	s := &RedisSink{
		client: client,
		store:  store,
		cfg:    cfg,
		logger: NewLogger("usage-sink"),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}

	go s.flushWorker()

	return s
}

// Enqueue pushes one entry onto the Redis buffer.
func (s *RedisSink) Enqueue(entry *models.UsageLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal usage entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, s.cfg.QueueKey, data)
	if s.cfg.MaxSize > 0 {
		pipe.LTrim(ctx, s.cfg.QueueKey, 0, s.cfg.MaxSize-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to buffer usage entry: %w", err)
	}

	return nil
}

// Flush drains up to BatchSize buffered entries into the store.
func (s *RedisSink) Flush(ctx context.Context) (int, error) {
	entries := make([]*models.UsageLogEntry, 0, s.cfg.BatchSize)

	for len(entries) < s.cfg.BatchSize {
		data, err := s.client.RPop(ctx, s.cfg.QueueKey).Bytes()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return len(entries), fmt.Errorf("failed to pop usage entry: %w", err)
		}

		var entry models.UsageLogEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			s.logger.Warn("Dropping undecodable usage entry", "error", err)
			continue
		}
		entries = append(entries, &entry)
	}

	if len(entries) == 0 {
		return 0, nil
	}

	if err := s.store.InsertBatch(ctx, entries); err != nil {
		// Push back so the next flush retries them.
		for _, entry := range entries {
			if data, mErr := json.Marshal(entry); mErr == nil {
				s.client.RPush(ctx, s.cfg.QueueKey, data)
			}
		}
		return 0, fmt.Errorf("failed to persist usage batch: %w", err)
	}

	return len(entries), nil
}

func (s *RedisSink) flushWorker() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := s.Flush(ctx); err != nil {
				s.logger.Error("Usage flush failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("Flushed usage entries", "count", n)
			}
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Shutdown stops the worker and performs a final flush.
func (s *RedisSink) Shutdown(ctx context.Context) error {
	close(s.stop)
	<-s.done

	for {
		n, err := s.Flush(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
