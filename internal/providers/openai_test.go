package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestAdapter(t *testing.T, handler http.HandlerFunc) Adapter {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewOpenAIAdapter(AdapterConfig{
		ConfigID: "cfg-1",
		APIKey:   "sk-test",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	return adapter
}

func TestOpenAIGenerateText(t *testing.T) {
	adapter := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o", payload["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"content": "hello there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 4,
				"total_tokens":      16,
			},
		})
	})

	gen, err := adapter.GenerateText(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "gpt-4o", nil)
	require.NoError(t, err)

	assert.Equal(t, "hello there", gen.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", gen.Model)
	assert.Equal(t, "stop", gen.FinishReason)
	assert.Equal(t, 12, gen.Usage.PromptTokens)
	assert.Equal(t, 4, gen.Usage.CompletionTokens)
	assert.Equal(t, 16, gen.Usage.TotalTokens)
}

func TestOpenAINormalizesRateLimit(t *testing.T) {
	adapter := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit reached"},
		})
	})

	_, err := adapter.GenerateText(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "gpt-4o", nil)
	require.Error(t, err)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7, rl.RetryAfterSeconds)
	assert.True(t, IsRateLimit(err))
}

func TestOpenAINormalizesAuthFailure(t *testing.T) {
	adapter := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key"},
		})
	})

	_, err := adapter.GenerateText(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "gpt-4o", nil)
	require.Error(t, err)
	assert.True(t, IsAuthentication(err))
}

func TestOpenAINormalizesServerError(t *testing.T) {
	adapter := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream broke"))
	})

	_, err := adapter.GenerateText(context.Background(),
		[]Message{{Role: "user", Content: "hi"}}, "gpt-4o", nil)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.StatusCode)
	assert.False(t, IsRateLimit(err))
	assert.False(t, IsAuthentication(err))
}

func TestOpenAITestConnection(t *testing.T) {
	ok := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.True(t, ok.TestConnection(context.Background()))

	bad := newOpenAITestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.False(t, bad.TestConnection(context.Background()))
}
