package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"modelrouter/internal/budget"
	"modelrouter/internal/providers"
	"modelrouter/internal/router"
	"modelrouter/internal/storage"
)

// handleExecute is the entry point for routed generations.
//
// Flow:
//  1. Validate method
//  2. Decode JSON body
//  3. Router.Execute (selection, budget, fallback chain)
//  4. Translate taxonomy errors into status codes
func (d *Dependencies) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req router.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := d.Router.Execute(r.Context(), &req)
	if err != nil {
		writeExecuteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// writeExecuteError maps the router's error taxonomy onto HTTP statuses:
// 429 rate limited, 401 credential rejected, 402 budget exceeded, 404 setup
// problems, 502 anything the vendor side broke.
func writeExecuteError(w http.ResponseWriter, err error) {
	var rateLimit *providers.RateLimitError
	if errors.As(err, &rateLimit) {
		if rateLimit.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(rateLimit.RetryAfterSeconds))
		}
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	var authErr *providers.AuthenticationError
	if errors.As(err, &authErr) {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var exceeded *budget.BudgetExceededError
	if errors.As(err, &exceeded) {
		writeJSONError(w, http.StatusPaymentRequired, err.Error())
		return
	}

	switch {
	case errors.Is(err, storage.ErrModelNotFound),
		errors.Is(err, storage.ErrNoActiveModels),
		errors.Is(err, storage.ErrProviderNotFound),
		errors.Is(err, storage.ErrConfigNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, providers.ErrUnsupportedProvider),
		errors.Is(err, providers.ErrMissingCredential):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, router.ErrAllProvidersFailed):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			writeJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleHealth reports process liveness plus backing store reachability.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	checks := map[string]string{"database": "ok", "redis": "ok"}

	if err := d.DB.Health(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": http.StatusText(status),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"code":    statusCode,
		},
	}

	_ = json.NewEncoder(w).Encode(errorResp)
}
