package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Budget (ai_usage_budgets table)
//

// Budget periods.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// Budget scope types.
const (
	ScopeUser    = "user"
	ScopeProject = "project"
)

// Budget is a spend cap for one (scope, provider, period) combination.
// SpentUSD is incremented after every execution and reset at period
// boundaries by keying rows on PeriodKey.
type Budget struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ScopeType  string    `db:"scope_type" json:"scope_type"`
	ScopeID    uuid.UUID `db:"scope_id" json:"scope_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Period     string    `db:"period" json:"period"`

	// PeriodKey identifies the current window, e.g. "2026-08-26" for daily
	// or "2026-08" for monthly rows.
	PeriodKey string `db:"period_key" json:"period_key"`

	BudgetUSD float64 `db:"budget_usd" json:"budget_usd"`
	SpentUSD  float64 `db:"spent_usd" json:"spent_usd"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PeriodKeyFor returns the window key for a period at the given time.
func PeriodKeyFor(period string, at time.Time) string {
	switch period {
	case PeriodMonthly:
		return at.UTC().Format("2006-01")
	default:
		return at.UTC().Format("2006-01-02")
	}
}
