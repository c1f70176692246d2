package storage

import "errors"

var (
	// ErrModelNotFound is returned when a model is not found
	ErrModelNotFound = errors.New("model not found")

	// ErrNoActiveModels is returned when no active model exists for a category
	ErrNoActiveModels = errors.New("no active models")

	// ErrProviderNotFound is returned when a provider is not found
	ErrProviderNotFound = errors.New("provider not found")

	// ErrConfigNotFound is returned when no provider config exists for a scope
	ErrConfigNotFound = errors.New("provider config not found")

	// ErrPreferenceNotFound is returned when no model preference exists for a scope
	ErrPreferenceNotFound = errors.New("model preference not found")

	// ErrBudgetNotFound is returned when no budget row exists
	ErrBudgetNotFound = errors.New("budget not found")

	// ErrHealthNotFound is returned when a provider has no health record yet
	ErrHealthNotFound = errors.New("provider health record not found")
)
