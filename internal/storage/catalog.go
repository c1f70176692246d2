package storage

import (
	"context"

	"github.com/google/uuid"

	"modelrouter/internal/models"
	"modelrouter/internal/providers"
)

// Catalog bundles the reference-data repositories and the adapter factory
// behind the lookups the router performs per request.
type Catalog struct {
	models  *ModelRepository
	provs   *ProviderRepository
	prefs   *PreferenceRepository
	configs *ConfigRepository
	factory *providers.Factory
}

// NewCatalog creates a catalog over the given database and factory.
func NewCatalog(db *DB, enc *Encryption, factory *providers.Factory) *Catalog {
	return &Catalog{
		models:  NewModelRepository(db),
		provs:   NewProviderRepository(db),
		prefs:   NewPreferenceRepository(db),
		configs: NewConfigRepository(db, enc),
		factory: factory,
	}
}

func (c *Catalog) ModelByID(ctx context.Context, id uuid.UUID) (*models.Model, error) {
	return c.models.GetByID(ctx, id)
}

func (c *Catalog) DefaultModel(ctx context.Context, category string) (*models.Model, error) {
	return c.models.DefaultForCategory(ctx, category)
}

func (c *Catalog) ProviderByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	return c.provs.GetByID(ctx, id)
}

func (c *Catalog) PreferenceFor(ctx context.Context, taskType string, userID, projectID *uuid.UUID) (*models.ModelPreference, error) {
	return c.prefs.GetForScope(ctx, taskType, userID, projectID)
}

// AdapterFor resolves the credential config for (provider, scope) and
// returns the cached adapter instance for it.
func (c *Catalog) AdapterFor(ctx context.Context, provider *models.Provider, userID, projectID *uuid.UUID) (providers.Adapter, error) {
	config, apiKey, err := c.configs.GetForScope(ctx, provider.ID, userID, projectID)
	if err != nil {
		return nil, err
	}
	return c.factory.CreateProvider(provider, config, apiKey)
}
