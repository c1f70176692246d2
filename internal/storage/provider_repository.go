package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

// ProviderRepository handles ai_providers database operations
type ProviderRepository struct {
	db *DB
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetByID retrieves a provider by id
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := `SELECT id, name, category, created_at FROM ai_providers WHERE id = $1`

	var provider models.Provider
	err := r.db.conn.GetContext(ctx, &provider, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &provider, nil
}

// GetByName retrieves a provider by name
func (r *ProviderRepository) GetByName(ctx context.Context, name string) (*models.Provider, error) {
	query := `SELECT id, name, category, created_at FROM ai_providers WHERE name = $1`

	var provider models.Provider
	err := r.db.conn.GetContext(ctx, &provider, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &provider, nil
}

// List returns all providers
func (r *ProviderRepository) List(ctx context.Context) ([]*models.Provider, error) {
	query := `SELECT id, name, category, created_at FROM ai_providers ORDER BY name`

	var out []*models.Provider
	if err := r.db.conn.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	return out, nil
}
