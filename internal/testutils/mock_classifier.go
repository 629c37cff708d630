package testutils

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

// MockIntentModel is the intent model returned by MockBuilder.
type MockIntentModel struct {
	intents      []string
	TrainingSize int
}

// Intents implements ports.IntentModel.
func (m *MockIntentModel) Intents() []string { return slices.Clone(m.intents) }

// MockEntityModel is the entity model returned by MockBuilder.
type MockEntityModel struct {
	intent       string
	TrainingSize int
}

// Intent implements ports.EntityModel.
func (m *MockEntityModel) Intent() string { return m.intent }

// NewMockEntityModel returns an entity model for intent.
func NewMockEntityModel(intent string) *MockEntityModel {
	return &MockEntityModel{intent: intent}
}

// MockBuilder implements ports.ModelBuilder without training anything.
// It records every build it is asked for and can be scripted to fail.
// MockBuilder is safe for concurrent use.
type MockBuilder struct {
	mu sync.Mutex

	// IntentErr, when set, is returned by every BuildIntentModel call.
	IntentErr error

	// EntityErrs maps intents to the error their entity build returns.
	EntityErrs map[string]error

	intentBuilds []int
	entityBuilds map[string]int
	contexts     []ports.BuildContext
}

// NewMockBuilder creates a MockBuilder that always succeeds.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		EntityErrs:   make(map[string]error),
		entityBuilds: make(map[string]int),
	}
}

// FailEntity scripts the entity build of intent to fail with err.
func (b *MockBuilder) FailEntity(intent string, err error) *MockBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.EntityErrs[intent] = err
	return b
}

// BuildIntentModel implements ports.ModelBuilder.
func (b *MockBuilder) BuildIntentModel(
	ctx context.Context,
	bc ports.BuildContext,
	expressions []domain.LabeledExpression,
) (ports.IntentModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.intentBuilds = append(b.intentBuilds, len(expressions))
	b.contexts = append(b.contexts, bc)
	if b.IntentErr != nil {
		return nil, b.IntentErr
	}

	var intents []string
	for _, expr := range expressions {
		if !slices.Contains(intents, expr.Intent) {
			intents = append(intents, expr.Intent)
		}
	}
	return &MockIntentModel{intents: intents, TrainingSize: len(expressions)}, nil
}

// BuildEntityModel implements ports.ModelBuilder.
func (b *MockBuilder) BuildEntityModel(
	ctx context.Context,
	bc ports.BuildContext,
	intent string,
	expressions []domain.LabeledExpression,
) (ports.EntityModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entityBuilds[intent] += len(expressions)
	b.contexts = append(b.contexts, bc)
	if err, ok := b.EntityErrs[intent]; ok {
		return nil, err
	}
	return &MockEntityModel{intent: intent, TrainingSize: len(expressions)}, nil
}

// IntentBuilds returns the training size of every intent model build.
func (b *MockBuilder) IntentBuilds() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.intentBuilds)
}

// EntityBuilds returns the number of expressions each intent's entity
// builds received.
func (b *MockBuilder) EntityBuilds() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.entityBuilds))
	for k, v := range b.entityBuilds {
		out[k] = v
	}
	return out
}

// Contexts returns the build contexts seen so far, in call order.
func (b *MockBuilder) Contexts() []ports.BuildContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.contexts)
}

// OracleParser implements ports.Parser by looking texts up in a labeled
// corpus and echoing the gold labels. Hooks let tests bend the answers.
// OracleParser is safe for concurrent use once configured.
type OracleParser struct {
	gold map[string]domain.LabeledExpression

	// Rewrite, when set, may alter the result for a known text.
	Rewrite func(expr domain.LabeledExpression, result domain.ParseResult) domain.ParseResult

	// Before, when set, runs before each lookup. A non-nil error is
	// returned from Parse as is.
	Before func(ctx context.Context, text string) error

	// UnknownIntent is predicted for texts that are not in the corpus.
	UnknownIntent string

	calls atomic.Int64
}

// NewOracleParser creates an OracleParser over corpus. When a text occurs
// more than once the first occurrence wins.
func NewOracleParser(corpus []domain.LabeledExpression) *OracleParser {
	gold := make(map[string]domain.LabeledExpression, len(corpus))
	for _, expr := range corpus {
		if _, ok := gold[expr.Text]; !ok {
			gold[expr.Text] = expr
		}
	}
	return &OracleParser{gold: gold, UnknownIntent: "unknown"}
}

// Parse implements ports.Parser.
func (p *OracleParser) Parse(
	ctx context.Context,
	_ ports.ParseContext,
	text string,
	_ ports.IntentModel,
	_ map[string]ports.EntityModel,
) (domain.ParseResult, error) {
	p.calls.Add(1)
	if p.Before != nil {
		if err := p.Before(ctx, text); err != nil {
			return domain.ParseResult{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}

	expr, ok := p.gold[text]
	if !ok {
		return domain.ParseResult{Intent: p.UnknownIntent}, nil
	}
	result := domain.ParseResult{
		Intent:            expr.Intent,
		IntentProbability: 1,
		Entities:          domain.ToRecognized(expr.Entities),
	}
	if p.Rewrite != nil {
		result = p.Rewrite(expr, result)
	}
	return result, nil
}

// Calls returns how many times Parse has been called.
func (p *OracleParser) Calls() int { return int(p.calls.Load()) }
