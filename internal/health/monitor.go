package health

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"modelrouter/internal/logging"
	"modelrouter/internal/models"
	"modelrouter/internal/storage"
)

// Gate thresholds. Reads refuse providers above 50% error rate, but a record
// only flips unavailable when a failing update pushes the rate past 75%.
// The asymmetry is hysteresis against flapping; keep both values.
const (
	readErrorRateLimit  = 50.0
	writeErrorRateLimit = 75.0
)

// Store persists provider health records.
type Store interface {
	Get(ctx context.Context, providerID uuid.UUID) (*models.ProviderHealth, error)
	Put(ctx context.Context, record *models.ProviderHealth) error
}

// Monitor tracks rolling success/error counts per provider and answers the
// availability predicate the router consults before each attempt.
type Monitor struct {
	store  Store
	logger *logging.Logger
}

// NewMonitor creates a health monitor over the given store.
func NewMonitor(store Store) *Monitor {
	return &Monitor{
		store:  store,
		logger: logging.NewLogger("health"),
	}
}

// Healthy reports whether a provider should receive traffic. Providers with
// no record yet are healthy; store failures also report healthy so a broken
// health table never blocks requests.
func (m *Monitor) Healthy(ctx context.Context, providerID uuid.UUID) bool {
	record, err := m.store.Get(ctx, providerID)
	if err != nil {
		if !errors.Is(err, storage.ErrHealthNotFound) {
			m.logger.Warn("Health lookup failed, assuming healthy",
				"provider_id", providerID, "error", err)
		}
		return true
	}

	if !record.IsAvailable {
		return false
	}
	return record.ErrorRate <= readErrorRateLimit
}

// Update records one attempt outcome and recomputes the derived fields.
func (m *Monitor) Update(ctx context.Context, providerID uuid.UUID, success bool, attemptErr error) error {
	record, err := m.store.Get(ctx, providerID)
	if err != nil {
		if !errors.Is(err, storage.ErrHealthNotFound) {
			return err
		}
		record = &models.ProviderHealth{ProviderID: providerID, IsAvailable: true}
	}

	if success {
		record.SuccessCount++
	} else {
		record.ErrorCount++
		if attemptErr != nil {
			record.LastError = attemptErr.Error()
		}
	}

	record.ErrorRate = errorRate(record.SuccessCount, record.ErrorCount)
	record.IsAvailable = success || record.ErrorRate < writeErrorRateLimit
	record.UpdatedAt = time.Now().UTC()

	return m.store.Put(ctx, record)
}

// errorRate is always recomputed from the cumulative counts, never adjusted
// incrementally.
func errorRate(successCount, errorCount int64) float64 {
	total := successCount + errorCount
	if total == 0 {
		return 0
	}
	return float64(errorCount) / float64(total) * 100
}
