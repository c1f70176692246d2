package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

// BudgetRepository handles ai_usage_budgets database operations
type BudgetRepository struct {
	db *DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// GetForPeriod returns the budget row for the scope in the given period.
func (r *BudgetRepository) GetForPeriod(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, period, periodKey string) (*models.Budget, error) {
	query := `
		SELECT id, scope_type, scope_id, provider_id, period, period_key,
		       budget_usd, spent_usd, created_at, updated_at
		FROM ai_usage_budgets
		WHERE scope_type = $1
		  AND scope_id = $2
		  AND provider_id = $3
		  AND period = $4
		  AND period_key = $5
	`

	var budget models.Budget
	err := r.db.conn.GetContext(ctx, &budget, query, scopeType, scopeID, providerID, period, periodKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	return &budget, nil
}

// AddSpend atomically increments the spent amount for the scope's budget
// row in the given period, creating the row with a zero cap when no budget
// has been configured yet. The increment happens inside the upsert, so
// concurrent callers never lose updates.
func (r *BudgetRepository) AddSpend(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, period, periodKey string, amountUSD float64) error {
	query := `
		INSERT INTO ai_usage_budgets (
			id, scope_type, scope_id, provider_id, period, period_key,
			budget_usd, spent_usd, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW(), NOW())
		ON CONFLICT (scope_type, scope_id, provider_id, period, period_key)
		DO UPDATE SET
			spent_usd = ai_usage_budgets.spent_usd + EXCLUDED.spent_usd,
			updated_at = NOW()
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		uuid.New(), scopeType, scopeID, providerID, period, periodKey, amountUSD)
	if err != nil {
		return fmt.Errorf("failed to add spend: %w", err)
	}
	return nil
}

// SetCap creates or updates the configured cap for a scope's budget in the
// given period, preserving any spend already recorded.
func (r *BudgetRepository) SetCap(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, period, periodKey string, budgetUSD float64) error {
	query := `
		INSERT INTO ai_usage_budgets (
			id, scope_type, scope_id, provider_id, period, period_key,
			budget_usd, spent_usd, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, NOW(), NOW())
		ON CONFLICT (scope_type, scope_id, provider_id, period, period_key)
		DO UPDATE SET
			budget_usd = EXCLUDED.budget_usd,
			updated_at = NOW()
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		uuid.New(), scopeType, scopeID, providerID, period, periodKey, budgetUSD)
	if err != nil {
		return fmt.Errorf("failed to set budget cap: %w", err)
	}
	return nil
}
