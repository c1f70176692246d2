package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

// PreferenceRepository handles ai_model_preferences database operations
type PreferenceRepository struct {
	db *DB
}

// NewPreferenceRepository creates a new model preference repository
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetForScope resolves the preference for (taskType, user, project). A
// user-scoped preference wins over a project-scoped one, which wins over
// an unscoped default for the task type.
func (r *PreferenceRepository) GetForScope(ctx context.Context, taskType string, userID, projectID *uuid.UUID) (*models.ModelPreference, error) {
	query := `
		SELECT id, task_type, user_id, project_id, primary_model_id,
		       fallback_model_ids, created_at, updated_at
		FROM ai_model_preferences
		WHERE task_type = $1
		  AND (
			($2::uuid IS NOT NULL AND user_id = $2)
			OR ($3::uuid IS NOT NULL AND user_id IS NULL AND project_id = $3)
			OR (user_id IS NULL AND project_id IS NULL)
		  )
		ORDER BY (user_id IS NOT NULL) DESC, (project_id IS NOT NULL) DESC
		LIMIT 1
	`

	var pref models.ModelPreference
	err := r.db.conn.GetContext(ctx, &pref, query, taskType, userID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model preference: %w", err)
	}

	return &pref, nil
}

// Upsert creates or replaces the preference for its (task_type, user,
// project) scope.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *models.ModelPreference) error {
	if pref.ID == uuid.Nil {
		pref.ID = uuid.New()
	}

	query := `
		INSERT INTO ai_model_preferences (
			id, task_type, user_id, project_id, primary_model_id,
			fallback_model_ids, created_at, updated_at
		)
		VALUES (
			:id, :task_type, :user_id, :project_id, :primary_model_id,
			:fallback_model_ids, NOW(), NOW()
		)
		ON CONFLICT (task_type, user_id, project_id)
		DO UPDATE SET
			primary_model_id = EXCLUDED.primary_model_id,
			fallback_model_ids = EXCLUDED.fallback_model_ids,
			updated_at = NOW()
	`

	if _, err := r.db.conn.NamedExecContext(ctx, query, pref); err != nil {
		return fmt.Errorf("failed to upsert model preference: %w", err)
	}
	return nil
}
