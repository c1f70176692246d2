package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//
// ModelPreference (ai_model_preferences table)
//

// ModelPreference maps a task type to a primary model and an ordered list of
// fallback models, scoped to a user and/or project.
type ModelPreference struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TaskType  string     `db:"task_type" json:"task_type"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ProjectID *uuid.UUID `db:"project_id" json:"project_id,omitempty"`

	PrimaryModelID uuid.UUID `db:"primary_model_id" json:"primary_model_id"`

	// Ordered; tried after the primary model, first to last.
	FallbackModelIDs pq.StringArray `db:"fallback_model_ids" json:"fallback_model_ids,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FallbackIDs parses the stored fallback list into UUIDs, dropping entries
// that do not parse.
func (p *ModelPreference) FallbackIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.FallbackModelIDs))
	for _, raw := range p.FallbackModelIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
