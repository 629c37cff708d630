// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// BuildContext identifies which model is being built and how.
type BuildContext struct {
	// Application is the name of the application the models belong to.
	Application string

	// Language is the BCP 47 tag of the corpus language.
	Language string

	// Intent is set when building an entity model and empty otherwise.
	Intent string

	// OnlyIfNotExists asks model maintenance to skip a build when a model
	// for the same key is already stored. Evaluation runs ignore it.
	OnlyIfNotExists bool
}

// ForIntent returns a copy of the context scoped to a single intent.
func (c BuildContext) ForIntent(intent string) BuildContext {
	c.Intent = intent
	return c
}

// ParseContext carries what the parser needs besides the text itself.
type ParseContext struct {
	// Application is the name of the application being evaluated.
	Application string

	// Language is the BCP 47 tag of the text.
	Language string
}

// IntentModel is an opaque, built intent classifier.
// Implementations must be safe for concurrent reads once built.
type IntentModel interface {
	// Intents returns the intent identifiers the model can predict.
	Intents() []string
}

// EntityModel is an opaque, built entity recognizer for a single intent.
// Implementations must be safe for concurrent reads once built.
type EntityModel interface {
	// Intent returns the intent the model was trained for.
	Intent() string
}

// ModelBuilder trains intent and entity models from labeled expressions.
// Training algorithms, features and persistence are the implementation's
// business; the harness only needs the built models back.
type ModelBuilder interface {
	// BuildIntentModel trains one classifier over all expressions,
	// regardless of their intent.
	BuildIntentModel(ctx context.Context, bc BuildContext, expressions []domain.LabeledExpression) (IntentModel, error)

	// BuildEntityModel trains a recognizer for one intent using only that
	// intent's expressions.
	BuildEntityModel(ctx context.Context, bc BuildContext, intent string, expressions []domain.LabeledExpression) (EntityModel, error)
}

// Parser runs inference on a text with previously built models.
// A Parser must tolerate concurrent calls that share the same models.
type Parser interface {
	// Parse predicts the intent of text and recognizes its entities.
	// entityModels maps intents to their recognizers; an intent may be
	// absent when its model could not be built.
	//
	// Example:
	//
	//	result, err := parser.Parse(ctx, pc, "book a table in Paris", intentModel, entityModels)
	//	if err != nil {
	//	    return fmt.Errorf("parse failed: %w", err)
	//	}
	Parse(
		ctx context.Context,
		pc ParseContext,
		text string,
		intentModel IntentModel,
		entityModels map[string]EntityModel,
	) (domain.ParseResult, error)
}

// ParserFunc adapts an ordinary function to the Parser interface.
type ParserFunc func(
	ctx context.Context,
	pc ParseContext,
	text string,
	intentModel IntentModel,
	entityModels map[string]EntityModel,
) (domain.ParseResult, error)

// Parse calls f.
func (f ParserFunc) Parse(
	ctx context.Context,
	pc ParseContext,
	text string,
	intentModel IntentModel,
	entityModels map[string]EntityModel,
) (domain.ParseResult, error) {
	return f(ctx, pc, text, intentModel, entityModels)
}
