package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

const modelColumns = `
	id, model_name, provider_id, category, performance_tier, is_active,
	input_price_per_unit, output_price_per_unit, per_token_unit,
	max_output_tokens, supports_streaming, supports_vision,
	supports_function_calling, metadata, created_at, updated_at
`

// ModelRepository handles ai_models database operations
type ModelRepository struct {
	db *DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// GetByID retrieves a model by id, using the cache
func (r *ModelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	cacheKey := "model:" + id.String()
	if cached, ok := r.db.modelCache.Get(cacheKey); ok {
		return cached.(*models.Model), nil
	}

	query := `SELECT ` + modelColumns + ` FROM ai_models WHERE id = $1`

	var model models.Model
	err := r.db.conn.GetContext(ctx, &model, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	r.db.modelCache.Set(cacheKey, &model)
	return &model, nil
}

// DefaultForCategory returns the highest-performance-tier active model in a
// category. Used when neither an explicit model nor a preference resolves.
func (r *ModelRepository) DefaultForCategory(ctx context.Context, category string) (*models.Model, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM ai_models
		WHERE category = $1 AND is_active = true
		ORDER BY performance_tier DESC, model_name ASC
		LIMIT 1
	`

	var model models.Model
	err := r.db.conn.GetContext(ctx, &model, query, category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveModels
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default model: %w", err)
	}

	return &model, nil
}

// ListActive returns all active models in a category
func (r *ModelRepository) ListActive(ctx context.Context, category string) ([]*models.Model, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM ai_models
		WHERE category = $1 AND is_active = true
		ORDER BY performance_tier DESC, model_name ASC
	`

	var out []*models.Model
	if err := r.db.conn.SelectContext(ctx, &out, query, category); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return out, nil
}
