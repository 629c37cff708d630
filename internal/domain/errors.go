package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during an evaluation run.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInsufficientCorpus indicates that the corpus holds fewer expressions
	// than the minimum sample size.
	ErrInsufficientCorpus = errors.New("insufficient corpus")

	// ErrInvalidThreshold indicates that the training fraction is outside (0, 1).
	ErrInvalidThreshold = errors.New("threshold must be in the open interval (0, 1)")

	// ErrModelBuild indicates that the intent model could not be built.
	ErrModelBuild = errors.New("model build failed")

	// ErrInference indicates that parsing a test expression failed.
	ErrInference = errors.New("inference failed")

	// ErrEvaluationAborted indicates that the run stopped before a report
	// could be assembled.
	ErrEvaluationAborted = errors.New("evaluation aborted")
)

// ConfigurationError represents a violated precondition of an evaluation run.
// It names the offending field and wraps the underlying cause.
type ConfigurationError struct {
	// Field is the configuration field or input that failed validation.
	Field string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: field=%s, err=%v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Is reports ErrInvalidConfiguration as a match so callers can test for the
// whole class without knowing the specific cause.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// NewConfigurationError creates a new ConfigurationError with the given details.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{
		Field: field,
		Err:   err,
	}
}

// ModelBuildError is returned when the intent model cannot be built.
// It is fatal to the run.
type ModelBuildError struct {
	// TrainingSize is the number of expressions the build was attempted with.
	TrainingSize int

	// Err is the error returned by the model builder.
	Err error
}

// Error implements the error interface for ModelBuildError.
func (e *ModelBuildError) Error() string {
	return fmt.Sprintf("intent model build failed: training_size=%d, err=%v", e.TrainingSize, e.Err)
}

// Unwrap returns the underlying error.
func (e *ModelBuildError) Unwrap() error { return e.Err }

// Is matches ErrModelBuild.
func (e *ModelBuildError) Is(target error) bool { return target == ErrModelBuild }

// NewModelBuildError creates a new ModelBuildError.
func NewModelBuildError(trainingSize int, err error) *ModelBuildError {
	return &ModelBuildError{TrainingSize: trainingSize, Err: err}
}

// EntityModelBuildError records a failed entity model build for one intent.
// It never aborts a run; the intent is simply left without an entity model.
type EntityModelBuildError struct {
	// Intent is the intent whose entity model failed to build.
	Intent string

	// Err is the error returned by the model builder.
	Err error
}

// Error implements the error interface for EntityModelBuildError.
func (e *EntityModelBuildError) Error() string {
	return fmt.Sprintf("entity model build failed: intent=%s, err=%v", e.Intent, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntityModelBuildError) Unwrap() error { return e.Err }

// NewEntityModelBuildError creates a new EntityModelBuildError.
func NewEntityModelBuildError(intent string, err error) *EntityModelBuildError {
	return &EntityModelBuildError{Intent: intent, Err: err}
}

// InferenceError is returned when parsing a test expression fails.
type InferenceError struct {
	// Index is the position of the expression in the test partition.
	Index int

	// Text is the expression text that was being parsed.
	Text string

	// Err is the error returned by the parser.
	Err error
}

// Error implements the error interface for InferenceError.
func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: index=%d, text=%q, err=%v", e.Index, e.Text, e.Err)
}

// Unwrap returns the underlying error.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is matches ErrInference.
func (e *InferenceError) Is(target error) bool { return target == ErrInference }

// NewInferenceError creates a new InferenceError.
func NewInferenceError(index int, text string, err error) *InferenceError {
	return &InferenceError{Index: index, Text: text, Err: err}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
