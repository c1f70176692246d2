package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicTimeout        = 60 * time.Second

	// The Messages API requires max_tokens; used when neither the request
	// parameters nor the config defaults provide one.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicAdapter implements the Adapter interface for the Anthropic
// Messages API
type AnthropicAdapter struct {
	apiKey   string
	client   *http.Client
	baseURL  string
	defaults map[string]any
}

// NewAnthropicAdapter creates a new Anthropic adapter instance
func NewAnthropicAdapter(cfg AdapterConfig) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	baseURL := anthropicDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	client := &http.Client{
		Timeout: anthropicTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &AnthropicAdapter{
		apiKey:   cfg.APIKey,
		client:   client,
		baseURL:  baseURL,
		defaults: cfg.Defaults,
	}, nil
}

// Name returns the vendor name
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// GenerateText sends a request to the Messages API
func (a *AnthropicAdapter) GenerateText(ctx context.Context, messages []Message, model string, params map[string]any) (*Generation, error) {
	// System turns move into the top-level system field.
	system := ""
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}

	payload := map[string]any{
		"model":    model,
		"messages": turns,
	}
	if system != "" {
		payload["system"] = system
	}
	for k, v := range a.defaults {
		payload[k] = v
	}
	for k, v := range params {
		payload[k] = v
	}
	if _, ok := payload["max_tokens"]; !ok {
		payload["max_tokens"] = anthropicDefaultMaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.baseURL + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.normalizeError(resp, respBody)
	}

	var parsed struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	content := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}

	return &Generation{
		Content:      content,
		Usage:        usage,
		Model:        respModel,
		FinishReason: parsed.StopReason,
	}, nil
}

// TestConnection sends a one-token message as a minimal round trip
func (a *AnthropicAdapter) TestConnection(ctx context.Context) bool {
	messages := []Message{{Role: "user", Content: "ping"}}
	params := map[string]any{"max_tokens": 1}

	_, err := a.GenerateText(ctx, messages, "claude-3-5-haiku-latest", params)
	if err != nil {
		// Rate limits still prove the credential works.
		return IsRateLimit(err)
	}
	return true
}

// Close releases idle connections
func (a *AnthropicAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *AnthropicAdapter) normalizeError(resp *http.Response, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := "unknown error"
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	} else if len(body) > 0 {
		message = string(body)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:          a.Name(),
			RetryAfterSeconds: parseRetryAfter(resp.Header.Get("retry-after")),
			Message:           message,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Provider: a.Name(), Message: message}
	default:
		return &ProviderError{Provider: a.Name(), StatusCode: resp.StatusCode, Message: message}
	}
}
