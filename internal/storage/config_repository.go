package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"modelrouter/internal/models"
)

const configColumns = `
	id, provider_id, user_id, project_id, encrypted_api_key, base_url,
	defaults, created_at, updated_at
`

// ConfigRepository handles ai_provider_configs database operations
type ConfigRepository struct {
	db  *DB
	enc *Encryption
}

// NewConfigRepository creates a new provider config repository
func NewConfigRepository(db *DB, enc *Encryption) *ConfigRepository {
	return &ConfigRepository{db: db, enc: enc}
}

// GetForScope resolves the config to use for (provider, user, project).
// A user-scoped config wins over a project-scoped one, which wins over an
// unscoped (shared) config. Returns the row and the decrypted API key.
func (r *ConfigRepository) GetForScope(ctx context.Context, providerID uuid.UUID, userID, projectID *uuid.UUID) (*models.ProviderConfig, string, error) {
	cacheKey := configCacheKey(providerID, userID, projectID)
	if cached, ok := r.db.configCache.Get(cacheKey); ok {
		config := cached.(*models.ProviderConfig)
		apiKey, err := r.decryptKey(config)
		return config, apiKey, err
	}

	query := `
		SELECT ` + configColumns + `
		FROM ai_provider_configs
		WHERE provider_id = $1
		  AND (
			($2::uuid IS NOT NULL AND user_id = $2)
			OR ($3::uuid IS NOT NULL AND user_id IS NULL AND project_id = $3)
			OR (user_id IS NULL AND project_id IS NULL)
		  )
		ORDER BY (user_id IS NOT NULL) DESC, (project_id IS NOT NULL) DESC
		LIMIT 1
	`

	var config models.ProviderConfig
	err := r.db.conn.GetContext(ctx, &config, query, providerID, userID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrConfigNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get provider config: %w", err)
	}

	r.db.configCache.Set(cacheKey, &config)

	apiKey, err := r.decryptKey(&config)
	return &config, apiKey, err
}

// Create stores a new provider config, encrypting the API key at rest.
// Called when a user connects a provider.
func (r *ConfigRepository) Create(ctx context.Context, config *models.ProviderConfig, apiKey string) error {
	encrypted, err := r.enc.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt API key: %w", err)
	}
	config.EncryptedAPIKey = encrypted

	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}
	now := time.Now().UTC()
	config.CreatedAt = now
	config.UpdatedAt = now

	query := `
		INSERT INTO ai_provider_configs (` + configColumns + `)
		VALUES (:id, :provider_id, :user_id, :project_id, :encrypted_api_key,
		        :base_url, :defaults, :created_at, :updated_at)
	`

	if _, err := r.db.conn.NamedExecContext(ctx, query, config); err != nil {
		return fmt.Errorf("failed to create provider config: %w", err)
	}

	r.db.configCache.Delete(configCacheKey(config.ProviderID, config.UserID, config.ProjectID))
	return nil
}

// Delete removes a provider config. Called when a user disconnects a
// provider.
func (r *ConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var config models.ProviderConfig
	err := r.db.conn.GetContext(ctx, &config,
		`SELECT `+configColumns+` FROM ai_provider_configs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConfigNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load provider config: %w", err)
	}

	if _, err := r.db.conn.ExecContext(ctx, `DELETE FROM ai_provider_configs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete provider config: %w", err)
	}

	r.db.configCache.Delete(configCacheKey(config.ProviderID, config.UserID, config.ProjectID))
	return nil
}

func (r *ConfigRepository) decryptKey(config *models.ProviderConfig) (string, error) {
	if config.EncryptedAPIKey == "" {
		return "", nil
	}
	apiKey, err := r.enc.Decrypt(config.EncryptedAPIKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt API key for config %s: %w", config.ID, err)
	}
	return apiKey, nil
}

func configCacheKey(providerID uuid.UUID, userID, projectID *uuid.UUID) string {
	key := "config:" + providerID.String()
	if userID != nil {
		key += ":u:" + userID.String()
	}
	if projectID != nil {
		key += ":p:" + projectID.String()
	}
	return key
}
