package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"modelrouter/internal/logging"
	"modelrouter/internal/models"
	"modelrouter/internal/storage"
)

// BudgetExceededError is returned when a request would push spend past the
// configured cap. Non-retryable; never triggers provider fallback.
type BudgetExceededError struct {
	SpentUSD  float64
	BudgetUSD float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: spent %.4f of %.4f USD", e.SpentUSD, e.BudgetUSD)
}

// Scope identifies whose spend is being tracked. A user scope wins over a
// project scope when both are present.
type Scope struct {
	UserID    *uuid.UUID
	ProjectID *uuid.UUID
}

// Resolve returns the scope type and id, or false when the request carries
// no scope at all (no budget applies).
func (s Scope) Resolve() (string, uuid.UUID, bool) {
	if s.UserID != nil {
		return models.ScopeUser, *s.UserID, true
	}
	if s.ProjectID != nil {
		return models.ScopeProject, *s.ProjectID, true
	}
	return "", uuid.Nil, false
}

// Budgets is the durable spend store. AddSpend must be atomic at the storage
// layer (increment-and-create upsert) so concurrent requests never lose
// increments.
type Budgets interface {
	GetForPeriod(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, period, periodKey string) (*models.Budget, error)
	AddSpend(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, period, periodKey string, amount float64) error
}

// Ledger enforces spend caps before provider calls and records actual spend
// afterwards. Redis, when configured, mirrors the intraday counter so checks
// see spend recorded milliseconds ago; the Postgres rows stay authoritative.
type Ledger struct {
	budgets Budgets
	redis   *redis.Client
	logger  *logging.Logger
	now     func() time.Time
}

// NewLedger creates a ledger. The Redis client may be nil.
func NewLedger(budgets Budgets, redisClient *redis.Client) *Ledger {
	return &Ledger{
		budgets: budgets,
		redis:   redisClient,
		logger:  logging.NewLogger("budget"),
		now:     time.Now,
	}
}

// Check rejects the request when the daily budget for (scope, provider)
// cannot absorb the estimated cost. Only daily budgets gate pre-call;
// monthly rows are tracked but not enforced here. No budget row, a zero cap,
// or a store failure all allow the request.
func (l *Ledger) Check(ctx context.Context, scope Scope, providerID uuid.UUID, estimatedCost float64) error {
	scopeType, scopeID, ok := scope.Resolve()
	if !ok {
		return nil
	}

	now := l.now()
	periodKey := models.PeriodKeyFor(models.PeriodDaily, now)

	b, err := l.budgets.GetForPeriod(ctx, scopeType, scopeID, providerID, models.PeriodDaily, periodKey)
	if err != nil {
		if !errors.Is(err, storage.ErrBudgetNotFound) {
			l.logger.Warn("Budget lookup failed, allowing request",
				"scope_type", scopeType, "scope_id", scopeID, "error", err)
		}
		return nil
	}
	if b.BudgetUSD <= 0 {
		return nil
	}

	spent := b.SpentUSD
	if counter, cErr := l.counterSpend(ctx, scopeType, scopeID, providerID, periodKey); cErr == nil && counter > spent {
		spent = counter
	}

	if b.BudgetUSD-spent < estimatedCost {
		return &BudgetExceededError{SpentUSD: spent, BudgetUSD: b.BudgetUSD}
	}
	return nil
}

// Record adds the actual cost of one execution to the daily and monthly
// rows, creating them when absent, and bumps the Redis counter.
func (l *Ledger) Record(ctx context.Context, scope Scope, providerID uuid.UUID, cost float64) error {
	scopeType, scopeID, ok := scope.Resolve()
	if !ok || cost <= 0 {
		return nil
	}

	now := l.now()

	for _, period := range []string{models.PeriodDaily, models.PeriodMonthly} {
		periodKey := models.PeriodKeyFor(period, now)
		if err := l.budgets.AddSpend(ctx, scopeType, scopeID, providerID, period, periodKey, cost); err != nil {
			return fmt.Errorf("failed to record %s spend: %w", period, err)
		}
	}

	dailyKey := models.PeriodKeyFor(models.PeriodDaily, now)
	if err := l.bumpCounter(ctx, scopeType, scopeID, providerID, dailyKey, cost); err != nil {
		// The durable rows already hold the spend.
		l.logger.Warn("Failed to bump spend counter", "error", err)
	}

	return nil
}

// addSpendScript atomically increments the counter and refreshes its TTL.
var addSpendScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key)) or 0
	local total = current + cost

	redis.call('SET', key, total, 'EX', ttl)
	return tostring(total)
`)

func (l *Ledger) bumpCounter(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, periodKey string, cost float64) error {
	if l.redis == nil {
		return nil
	}

	key := counterKey(scopeType, scopeID, providerID, periodKey)
	ttl := int((48 * time.Hour).Seconds())

	return addSpendScript.Run(ctx, l.redis, []string{key}, cost, ttl).Err()
}

func (l *Ledger) counterSpend(ctx context.Context, scopeType string, scopeID, providerID uuid.UUID, periodKey string) (float64, error) {
	if l.redis == nil {
		return 0, redis.Nil
	}

	key := counterKey(scopeType, scopeID, providerID, periodKey)
	return l.redis.Get(ctx, key).Float64()
}

func counterKey(scopeType string, scopeID, providerID uuid.UUID, periodKey string) string {
	return fmt.Sprintf("spend:%s:%s:%s:%s", scopeType, scopeID, providerID, periodKey)
}
