package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is returned when no adapter is registered for
	// a provider name
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingCredential is returned when a provider config has no usable
	// API key
	ErrMissingCredential = errors.New("provider config has no API key")
)

// ProviderError is the generic normalized vendor failure. It carries the
// vendor HTTP status code when one was received.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: provider error: %s", e.Provider, e.Message)
}

// RateLimitError indicates the vendor throttled the request. Retryable.
// RetryAfterSeconds is zero when the vendor gave no hint.
type RateLimitError struct {
	Provider          string
	RetryAfterSeconds int
	Message           string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %ds): %s", e.Provider, e.RetryAfterSeconds, e.Message)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
}

// AuthenticationError indicates the credential was rejected. Non-retryable.
type AuthenticationError struct {
	Provider string
	Message  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

// IsRateLimit reports whether err is (or wraps) a rate limit failure.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsAuthentication reports whether err is (or wraps) a credential failure.
func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
