package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Model (ai_models table)
//

// Task categories a model can serve.
const (
	CategoryText  = "text"
	CategoryImage = "image"
	CategoryAudio = "audio"
)

// Model is immutable reference data describing one vendor model.
type Model struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ModelName  string    `db:"model_name" json:"model_name"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Category   string    `db:"category" json:"category"`

	// Higher tier wins when picking a default model.
	PerformanceTier int  `db:"performance_tier" json:"performance_tier"`
	IsActive        bool `db:"is_active" json:"is_active"`

	// Pricing. Prices are USD per PerTokenUnit tokens (typically 1000).
	InputPricePerUnit  float64 `db:"input_price_per_unit" json:"input_price_per_unit"`
	OutputPricePerUnit float64 `db:"output_price_per_unit" json:"output_price_per_unit"`
	PerTokenUnit       float64 `db:"per_token_unit" json:"per_token_unit"`

	MaxOutputTokens int `db:"max_output_tokens" json:"max_output_tokens"`

	// Capability flags
	SupportsStreaming       bool `db:"supports_streaming" json:"supports_streaming"`
	SupportsVision          bool `db:"supports_vision" json:"supports_vision"`
	SupportsFunctionCalling bool `db:"supports_function_calling" json:"supports_function_calling"`

	Metadata JSONB `db:"metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CalculateCost returns the USD cost of a request against this model's
// pricing. Linear in each token count, zero when both counts are zero.
func (m *Model) CalculateCost(inputTokens, outputTokens int) float64 {
	unit := m.PerTokenUnit
	if unit <= 0 {
		unit = 1000
	}

	inputCost := float64(inputTokens) / unit * m.InputPricePerUnit
	outputCost := float64(outputTokens) / unit * m.OutputPricePerUnit

	return inputCost + outputCost
}
