package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelrouter/internal/budget"
	"modelrouter/internal/providers"
	"modelrouter/internal/router"
	"modelrouter/internal/storage"
)

func TestWriteExecuteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "rate limited",
			err:        &providers.RateLimitError{Provider: "openai", Message: "slow down"},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "authentication rejected",
			err:        &providers.AuthenticationError{Provider: "openai", Message: "bad key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "budget exceeded",
			err:        &budget.BudgetExceededError{SpentUSD: 9.5, BudgetUSD: 10},
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "model not found",
			err:        storage.ErrModelNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "no active models",
			err:        storage.ErrNoActiveModels,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "config not found",
			err:        storage.ErrConfigNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing credential",
			err:        providers.ErrMissingCredential,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "vendor failure",
			err:        &providers.ProviderError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "chain exhausted",
			err:        router.ErrAllProvidersFailed,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeExecuteError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			errObj, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.NotEmpty(t, errObj["message"])
			assert.EqualValues(t, tt.wantStatus, errObj["code"])
		})
	}
}

func TestWriteExecuteErrorSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeExecuteError(rec, &providers.RateLimitError{Provider: "openai", RetryAfterSeconds: 30, Message: "slow down"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}
