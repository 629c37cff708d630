package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrModelNotFound indicates that a requested model is not stored.
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyTrainingSet indicates that a build was attempted without
	// any expressions.
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// ProviderError represents an error from an external classification
// provider. It includes details about the provider, the operation and the
// HTTP status when one is known.
type ProviderError struct {
	// Provider is the name of the provider that generated the error.
	Provider string

	// Operation is the name of the operation that failed.
	Operation string

	// StatusCode is the HTTP status returned by the provider, or 0.
	StatusCode int

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider error: provider=%s, operation=%s, err=%v", e.Provider, e.Operation, e.Err)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *ProviderError) IsRetryable() bool {
	// Only network/service-level errors are retryable; logic errors are not
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewProviderError creates a new ProviderError with the given details.
func NewProviderError(provider, operation string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

// StoreError represents an error from model store operations.
// It includes the key and operation that failed.
type StoreError struct {
	// Key is the store key that was involved in the failed operation.
	Key string

	// Operation is the name of the store operation that failed.
	Operation string

	// Err is the underlying error that caused the store operation to fail.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(key, operation string, err error) *StoreError {
	return &StoreError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}
