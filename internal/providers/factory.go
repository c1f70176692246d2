package providers

import (
	"fmt"
	"sync"

	"modelrouter/internal/models"
)

// Creator is a function that builds an adapter instance from a config.
type Creator func(cfg AdapterConfig) (Adapter, error)

// Factory builds and caches adapter instances. The name→creator registry is
// open: new vendors register at runtime without touching the router.
type Factory struct {
	mu        sync.RWMutex
	creators  map[string]Creator
	instances map[string]Adapter
}

// NewFactory creates a factory with the built-in vendors registered.
func NewFactory() *Factory {
	f := &Factory{
		creators:  make(map[string]Creator),
		instances: make(map[string]Adapter),
	}

	f.Register("openai", NewOpenAIAdapter)
	f.Register("anthropic", NewAnthropicAdapter)

	return f
}

// Register registers a creator for a provider name.
func (f *Factory) Register(providerName string, creator Creator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[providerName] = creator
}

// SupportedProviders returns the registered provider names.
func (f *Factory) SupportedProviders() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	return names
}

// CreateProvider returns the adapter for a (provider, config) pair, building
// it on first use. Repeated calls with the same provider name and config ID
// return the identical cached instance.
func (f *Factory) CreateProvider(provider *models.Provider, config *models.ProviderConfig, apiKey string) (Adapter, error) {
	key := cacheKey(provider.Name, config.ID.String())

	f.mu.RLock()
	if adapter, ok := f.instances[key]; ok {
		f.mu.RUnlock()
		return adapter, nil
	}
	creator, registered := f.creators[provider.Name]
	f.mu.RUnlock()

	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider.Name)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: provider %s, config %s", ErrMissingCredential, provider.Name, config.ID)
	}

	adapter, err := creator(AdapterConfig{
		ConfigID: config.ID.String(),
		APIKey:   apiKey,
		BaseURL:  config.BaseURL,
		Defaults: config.Defaults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", provider.Name, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another request may have built the instance while we were unlocked.
	if existing, ok := f.instances[key]; ok {
		_ = adapter.Close()
		return existing, nil
	}
	f.instances[key] = adapter

	return adapter, nil
}

// Evict removes a cached instance, closing it. Called when a provider config
// is deleted (user disconnects the provider).
func (f *Factory) Evict(providerName, configID string) {
	key := cacheKey(providerName, configID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if adapter, ok := f.instances[key]; ok {
		_ = adapter.Close()
		delete(f.instances, key)
	}
}

// Close closes every cached adapter.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, adapter := range f.instances {
		_ = adapter.Close()
		delete(f.instances, key)
	}
	return nil
}

func cacheKey(providerName, configID string) string {
	return providerName + ":" + configID
}
