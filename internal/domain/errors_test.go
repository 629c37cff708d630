package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		wantMsg  string
		sentinel error
	}{
		{
			name:     "configuration error",
			err:      NewConfigurationError("threshold", cause),
			wantMsg:  "configuration error: field=threshold, err=boom",
			sentinel: ErrInvalidConfiguration,
		},
		{
			name:     "model build error",
			err:      NewModelBuildError(80, cause),
			wantMsg:  "intent model build failed: training_size=80, err=boom",
			sentinel: ErrModelBuild,
		},
		{
			name:     "inference error",
			err:      NewInferenceError(3, "hello", cause),
			wantMsg:  `inference failed: index=3, text="hello", err=boom`,
			sentinel: ErrInference,
		},
		{
			name:    "entity model build error",
			err:     NewEntityModelBuildError("greet", cause),
			wantMsg: "entity model build failed: intent=greet, err=boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.ErrorIs(t, tt.err, cause, "should unwrap to the cause")
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
		})
	}
}

func TestEntityModelBuildError_NotFatal(t *testing.T) {
	err := NewEntityModelBuildError("greet", errors.New("no entities"))
	assert.NotErrorIs(t, err, ErrModelBuild)
	assert.NotErrorIs(t, err, ErrInference)
}

func TestConfigurationError_WrapsSentinel(t *testing.T) {
	err := NewConfigurationError("corpus", ErrInsufficientCorpus)
	assert.ErrorIs(t, err, ErrInsufficientCorpus)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "corpus", cfgErr.Field)
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("corpus")
		err.AddError("expressions[0]: empty text")

		assert.Equal(t, "validation error for corpus: expressions[0]: empty text", err.Error())
		assert.True(t, err.HasErrors())
		assert.Len(t, err.Errors, 1)
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("corpus")
		err.AddError("expressions[0]: span out of range")
		err.AddError("expressions[4]: empty intent")

		assert.Contains(t, err.Error(), "validation errors for corpus")
		assert.Len(t, err.Errors, 2)
		assert.Equal(t, "expressions[0]: span out of range", err.Errors[0])
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("config")

		assert.False(t, err.HasErrors())
		assert.Empty(t, err.Errors)
	})
}
