package router

import "errors"

// ErrAllProvidersFailed is returned when the chain is exhausted without any
// attempt producing a more specific error to propagate.
var ErrAllProvidersFailed = errors.New("all providers failed")
