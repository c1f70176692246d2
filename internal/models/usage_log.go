package models

import (
	"time"

	"github.com/google/uuid"
)

//
// UsageLogEntry (ai_usage_logs table)
//

// Usage log statuses.
const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// UsageLogEntry is an append-only record of one execution attempt outcome.
// Entries are created after every request and never mutated.
type UsageLogEntry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	RequestID uuid.UUID  `db:"request_id" json:"request_id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ProjectID *uuid.UUID `db:"project_id" json:"project_id,omitempty"`

	ModelID    uuid.UUID `db:"model_id" json:"model_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	ModelName  string    `db:"model_name" json:"model_name"`
	TaskType   string    `db:"task_type" json:"task_type"`

	PromptTokens     int     `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int     `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int     `db:"total_tokens" json:"total_tokens"`
	CostUSD          float64 `db:"cost_usd" json:"cost_usd"`

	DurationMS  int64  `db:"duration_ms" json:"duration_ms"`
	WasFallback bool   `db:"was_fallback" json:"was_fallback"`
	Status      string `db:"status" json:"status"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`

	Metadata JSONB `db:"metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
