package models

import (
	"time"

	"github.com/google/uuid"
)

//
// ProviderHealth (ai_provider_health table)
//

// ProviderHealth holds rolling success/error counters for one provider.
// ErrorRate is always recomputed from the cumulative counts, never adjusted
// independently of them.
type ProviderHealth struct {
	ProviderID   uuid.UUID `db:"provider_id" json:"provider_id"`
	SuccessCount int64     `db:"success_count" json:"success_count"`
	ErrorCount   int64     `db:"error_count" json:"error_count"`
	ErrorRate    float64   `db:"error_rate" json:"error_rate"`
	IsAvailable  bool      `db:"is_available" json:"is_available"`
	LastError    string    `db:"last_error" json:"last_error,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
