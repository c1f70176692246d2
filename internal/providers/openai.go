package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAITimeout        = 60 * time.Second
)

// OpenAIAdapter implements the Adapter interface for OpenAI
type OpenAIAdapter struct {
	apiKey   string
	client   *http.Client
	baseURL  string
	defaults map[string]any
}

// NewOpenAIAdapter creates a new OpenAI adapter instance
func NewOpenAIAdapter(cfg AdapterConfig) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	baseURL := openAIDefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	client := &http.Client{
		Timeout: openAITimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &OpenAIAdapter{
		apiKey:   cfg.APIKey,
		client:   client,
		baseURL:  baseURL,
		defaults: cfg.Defaults,
	}, nil
}

// Name returns the vendor name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// GenerateText sends a chat completion request to OpenAI
func (a *OpenAIAdapter) GenerateText(ctx context.Context, messages []Message, model string, params map[string]any) (*Generation, error) {
	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	for k, v := range a.defaults {
		payload[k] = v
	}
	for k, v := range params {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: a.Name(), StatusCode: resp.StatusCode, Message: "response contained no choices"}
	}

	usage := Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}

	return &Generation{
		Content:      parsed.Choices[0].Message.Content,
		Usage:        usage,
		Model:        respModel,
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}

// GenerateImage sends an image generation request to OpenAI
func (a *OpenAIAdapter) GenerateImage(ctx context.Context, prompt string, model string, params map[string]any) (*ImageResult, error) {
	payload := map[string]any{
		"model":  model,
		"prompt": prompt,
	}
	for k, v := range params {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := a.baseURL + "/images/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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
		Data []struct {
			URL    string `json:"url"`
			B64    string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, &ProviderError{Provider: a.Name(), StatusCode: resp.StatusCode, Message: "response contained no images"}
	}

	return &ImageResult{
		URL:    parsed.Data[0].URL,
		Base64: parsed.Data[0].B64,
	}, nil
}

// TestConnection lists models as a minimal round trip
func (a *OpenAIAdapter) TestConnection(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections
func (a *OpenAIAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// normalizeError translates an OpenAI error response into the normalized
// error taxonomy.
func (a *OpenAIAdapter) normalizeError(resp *http.Response, body []byte) error {
	message := extractErrorMessage(body)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:          a.Name(),
			RetryAfterSeconds: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:           message,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Provider: a.Name(), Message: message}
	default:
		return &ProviderError{Provider: a.Name(), StatusCode: resp.StatusCode, Message: message}
	}
}

// extractErrorMessage pulls the message out of an OpenAI-style error body.
func extractErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return "unknown error"
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
