package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

// Common errors returned by the client and providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrNoResponseChoice indicates that the provider's response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrCircuitOpen indicates that the circuit breaker rejected a request.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ErrorClassifier turns provider failures into *ports.ProviderError values
// wrapping the ports sentinel for their category, so callers can test
// with errors.Is and decide on retries with IsRetryable.
type ErrorClassifier struct {
	// Provider is the name reported in classified errors.
	Provider string
}

// ClassifyHTTPError classifies a failed exchange by its HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(operation string, statusCode int, message string, err error) *ports.ProviderError {
	var category error
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		category = ports.ErrAuthenticationFailed
	case statusCode == http.StatusTooManyRequests:
		category = ports.ErrRateLimited
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		category = ports.ErrTimeout
	case statusCode >= 500:
		category = ports.ErrServiceUnavailable
	default:
		return ports.NewProviderError(ec.Provider, operation, statusCode, fmt.Errorf("%s: %w", message, err))
	}
	return ports.NewProviderError(ec.Provider, operation, statusCode, fmt.Errorf("%w: %s: %w", category, message, err))
}

// ClassifyContextError classifies context.DeadlineExceeded as a timeout.
// Cancellation keeps context.Canceled in the chain and is not retryable.
func (ec *ErrorClassifier) ClassifyContextError(operation string, err error) *ports.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return ports.NewProviderError(ec.Provider, operation, 0, fmt.Errorf("%w: %w", ports.ErrTimeout, err))
	}
	return ports.NewProviderError(ec.Provider, operation, 0, err)
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var perr *ports.ProviderError
	return errors.As(err, &perr) && perr.IsRetryable()
}
