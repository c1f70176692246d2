package models

import (
	"time"

	"github.com/google/uuid"
)

//
// Provider (ai_providers table)
//

// Provider is immutable reference data identifying one external AI vendor.
type Provider struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Category string    `db:"category" json:"category"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

//
// ProviderConfig (ai_provider_configs table)
//

// ProviderConfig holds the credential and default parameters a user or
// project supplies when connecting a provider. The API key is encrypted at
// rest; repositories hand out the decrypted value separately.
type ProviderConfig struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ProviderID uuid.UUID  `db:"provider_id" json:"provider_id"`
	UserID     *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	ProjectID  *uuid.UUID `db:"project_id" json:"project_id,omitempty"`

	EncryptedAPIKey string `db:"encrypted_api_key" json:"-"`
	BaseURL         string `db:"base_url" json:"base_url,omitempty"`
	Defaults        JSONB  `db:"defaults" json:"defaults,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
