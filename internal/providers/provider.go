package providers

import (
	"context"
)

// Message is one turn of a normalized chat conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Usage holds token counts reported by the vendor for one generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generation is a normalized provider response.
type Generation struct {
	Content      string         `json:"content"`
	Usage        Usage          `json:"usage"`
	Model        string         `json:"model"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ImageResult is a normalized image generation response.
type ImageResult struct {
	URL      string         `json:"url,omitempty"`
	Base64   string         `json:"b64,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Adapter wraps one external AI vendor behind a uniform call contract.
// Vendor-specific failures must be surfaced as *RateLimitError,
// *AuthenticationError or *ProviderError.
type Adapter interface {
	// Name returns the vendor name this adapter serves (openai, anthropic, ...)
	Name() string

	// GenerateText sends a chat request and returns the normalized result
	GenerateText(ctx context.Context, messages []Message, model string, params map[string]any) (*Generation, error)

	// TestConnection performs a minimal round trip and reports success,
	// swallowing all errors
	TestConnection(ctx context.Context) bool

	// Close releases any held resources
	Close() error
}

// ImageGenerator is implemented by adapters that can produce images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, model string, params map[string]any) (*ImageResult, error)
}

// Transcriber is implemented by adapters that can transcribe audio.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte, model string, params map[string]any) (string, error)
}

// AdapterConfig holds everything a creator needs to build an adapter
// instance for one stored provider configuration.
type AdapterConfig struct {
	ConfigID string         // identity of the stored ProviderConfig row
	APIKey   string         // decrypted credential
	BaseURL  string         // optional vendor endpoint override
	Defaults map[string]any // default request parameters
}
