package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

const usageColumns = `
	id, request_id, user_id, project_id, model_id, provider_id, model_name,
	task_type, prompt_tokens, completion_tokens, total_tokens, cost_usd,
	duration_ms, was_fallback, status, error_message, metadata, created_at
`

const usageValues = `
	:id, :request_id, :user_id, :project_id, :model_id, :provider_id,
	:model_name, :task_type, :prompt_tokens, :completion_tokens,
	:total_tokens, :cost_usd, :duration_ms, :was_fallback, :status,
	:error_message, :metadata, :created_at
`

// UsageRepository handles ai_usage_logs database operations. It satisfies
// the usage sink's UsageStore interface.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage log repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert appends one usage log entry.
func (r *UsageRepository) Insert(ctx context.Context, entry *models.UsageLogEntry) error {
	prepareUsageEntry(entry)

	query := `INSERT INTO ai_usage_logs (` + usageColumns + `) VALUES (` + usageValues + `)`
	if _, err := r.db.conn.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

// InsertBatch appends usage log entries in a single statement. sqlx expands
// the named values once per entry.
func (r *UsageRepository) InsertBatch(ctx context.Context, entries []*models.UsageLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		prepareUsageEntry(entry)
	}

	query := `INSERT INTO ai_usage_logs (` + usageColumns + `) VALUES (` + usageValues + `)`
	if _, err := r.db.conn.NamedExecContext(ctx, query, entries); err != nil {
		return fmt.Errorf("failed to insert usage batch: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries for a user, for dashboards and
// debugging.
func (r *UsageRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + usageColumns + `
		FROM ai_usage_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var entries []models.UsageLogEntry
	if err := r.db.conn.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	return entries, nil
}

// TotalCostSince returns the summed cost of successful executions for a
// user from the given time onwards.
func (r *UsageRepository) TotalCostSince(ctx context.Context, userID uuid.UUID, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM ai_usage_logs
		WHERE user_id = $1 AND status = $2 AND created_at >= $3
	`

	var total float64
	if err := r.db.conn.GetContext(ctx, &total, query, userID, models.UsageStatusSuccess, since); err != nil {
		return 0, fmt.Errorf("failed to sum usage cost: %w", err)
	}
	return total, nil
}

func prepareUsageEntry(entry *models.UsageLogEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
