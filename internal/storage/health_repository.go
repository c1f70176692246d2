package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

// HealthRepository handles ai_provider_health database operations. It
// satisfies the health monitor's Store interface.
type HealthRepository struct {
	db *DB
}

// NewHealthRepository creates a new provider health repository
func NewHealthRepository(db *DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Get returns the health record for a provider.
func (r *HealthRepository) Get(ctx context.Context, providerID uuid.UUID) (*models.ProviderHealth, error) {
	query := `
		SELECT provider_id, success_count, error_count, error_rate,
		       is_available, last_error, updated_at
		FROM ai_provider_health
		WHERE provider_id = $1
	`

	var record models.ProviderHealth
	err := r.db.conn.GetContext(ctx, &record, query, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHealthNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider health: %w", err)
	}

	return &record, nil
}

// Put creates or replaces a provider's health record.
func (r *HealthRepository) Put(ctx context.Context, record *models.ProviderHealth) error {
	query := `
		INSERT INTO ai_provider_health (
			provider_id, success_count, error_count, error_rate,
			is_available, last_error, updated_at
		)
		VALUES (
			:provider_id, :success_count, :error_count, :error_rate,
			:is_available, :last_error, :updated_at
		)
		ON CONFLICT (provider_id)
		DO UPDATE SET
			success_count = EXCLUDED.success_count,
			error_count = EXCLUDED.error_count,
			error_rate = EXCLUDED.error_rate,
			is_available = EXCLUDED.is_available,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.conn.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to upsert provider health: %w", err)
	}
	return nil
}
