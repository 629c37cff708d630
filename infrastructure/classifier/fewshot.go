package classifier

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

var (
	_ ports.ModelBuilder = (*FewShot)(nil)
	_ ports.Parser       = (*FewShot)(nil)
)

// Completer sends a prompt to a language model and returns its answer.
// *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)
}

// FewShotConfig defines the configuration parameters for the FewShot
// classifier.
type FewShotConfig struct {
	// ExamplesPerIntent caps the training examples kept per intent and per
	// entity model.
	ExamplesPerIntent int `yaml:"examples_per_intent" json:"examples_per_intent" validate:"required,min=1,max=50"`

	// Temperature is passed to the language model.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=2.0"`

	// MaxTokens bounds the response length.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=16,max=4000"`

	// UnknownIntent replaces answers naming an intent the model was not
	// built with. Empty keeps the answer as given.
	UnknownIntent string `yaml:"unknown_intent" json:"unknown_intent"`

	// Prompt overrides the default prompt template.
	Prompt string `yaml:"prompt" json:"prompt"`
}

// DefaultFewShotConfig returns the configuration used by the command line
// tool when the run configuration leaves these fields out.
func DefaultFewShotConfig() FewShotConfig {
	return FewShotConfig{
		ExamplesPerIntent: 5,
		Temperature:       0,
		MaxTokens:         256,
	}
}

// FewShot classifies with a chat language model. Building a model only
// selects the examples to show; every Parse is one completion request
// that lists the intents, the examples and the text.
//
// FewShot is safe for concurrent use when its Completer is.
type FewShot struct {
	config    FewShotConfig
	completer Completer
	prompt    *template.Template
	tracer    trace.Tracer
}

// fewShotResponse is the JSON object the language model answers with.
type fewShotResponse struct {
	Intent      string        `json:"intent" validate:"required"`
	Probability float64       `json:"probability" validate:"min=0.0,max=1.0"`
	Entities    []EntityValue `json:"entities"`
}

// NewFewShot creates a FewShot classifier.
// Returns an error if completer is nil, configuration validation fails or
// the prompt template does not parse.
func NewFewShot(completer Completer, config FewShotConfig) (*FewShot, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer cannot be nil")
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	text := config.Prompt
	if text == "" {
		text = defaultFewShotPrompt
	}
	tmpl, err := template.New("fewshot").Funcs(promptFuncs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &FewShot{
		config:    config,
		completer: completer,
		prompt:    tmpl,
		tracer:    otel.Tracer("fewshot-classifier"),
	}, nil
}

// BuildIntentModel implements ports.ModelBuilder. It keeps the first
// ExamplesPerIntent expressions of every intent.
func (f *FewShot) BuildIntentModel(
	ctx context.Context,
	bc ports.BuildContext,
	expressions []domain.LabeledExpression,
) (ports.IntentModel, error) {
	_, span := f.tracer.Start(ctx, "FewShot.BuildIntentModel",
		trace.WithAttributes(
			attribute.String("classifier.application", bc.Application),
			attribute.Int("classifier.expressions", len(expressions)),
		),
	)
	defer span.End()

	if len(expressions) == 0 {
		span.SetStatus(codes.Error, ports.ErrEmptyTrainingSet.Error())
		return nil, ports.ErrEmptyTrainingSet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := &FewShotIntentModel{}
	kept := make(map[string]int)
	for _, expr := range expressions {
		if _, seen := kept[expr.Intent]; !seen {
			model.Labels = append(model.Labels, expr.Intent)
		}
		if kept[expr.Intent] < f.config.ExamplesPerIntent {
			model.Examples = append(model.Examples, Example{Text: expr.Text, Intent: expr.Intent})
		}
		kept[expr.Intent]++
	}

	span.SetAttributes(
		attribute.Int("classifier.intents", len(model.Labels)),
		attribute.Int("classifier.examples", len(model.Examples)),
	)
	return model, nil
}

// BuildEntityModel implements ports.ModelBuilder. It keeps the first
// ExamplesPerIntent expressions that carry entities.
func (f *FewShot) BuildEntityModel(
	ctx context.Context,
	bc ports.BuildContext,
	intent string,
	expressions []domain.LabeledExpression,
) (ports.EntityModel, error) {
	_, span := f.tracer.Start(ctx, "FewShot.BuildEntityModel",
		trace.WithAttributes(
			attribute.String("classifier.application", bc.Application),
			attribute.String("classifier.intent", intent),
		),
	)
	defer span.End()

	if len(expressions) == 0 {
		span.SetStatus(codes.Error, ports.ErrEmptyTrainingSet.Error())
		return nil, ports.ErrEmptyTrainingSet
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := &FewShotEntityModel{IntentName: intent}
	for _, expr := range expressions {
		if len(expr.Entities) == 0 || len(model.Examples) == f.config.ExamplesPerIntent {
			continue
		}
		example := EntityExample{Intent: intent, Text: expr.Text}
		for _, ent := range expr.Entities {
			if ent.Span.Start < 0 || ent.Span.End > len(expr.Text) || ent.Span.Start >= ent.Span.End {
				err := fmt.Errorf("%w: %s %s in %q", ErrInvalidSpan, ent.Role, ent.Span, expr.Text)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			example.Entities = append(example.Entities, EntityValue{
				Role:  ent.Role,
				Type:  ent.EntityType,
				Value: expr.Text[ent.Span.Start:ent.Span.End],
			})
		}
		model.Examples = append(model.Examples, example)
	}

	span.SetAttributes(attribute.Int("classifier.examples", len(model.Examples)))
	return model, nil
}

// Parse implements ports.Parser. Entities are only reported when an
// entity model exists for the predicted intent; values that cannot be
// found in text are dropped.
func (f *FewShot) Parse(
	ctx context.Context,
	pc ports.ParseContext,
	text string,
	intentModel ports.IntentModel,
	entityModels map[string]ports.EntityModel,
) (domain.ParseResult, error) {
	ctx, span := f.tracer.Start(ctx, "FewShot.Parse",
		trace.WithAttributes(attribute.String("classifier.application", pc.Application)),
	)
	defer span.End()

	im, ok := intentModel.(*FewShotIntentModel)
	if !ok {
		err := fmt.Errorf("%w: intent model %T", ErrForeignModel, intentModel)
		span.RecordError(err)
		return domain.ParseResult{}, err
	}

	data := promptData{Intents: im.Labels, Examples: im.Examples, Text: text}
	for _, intent := range slices.Sorted(maps.Keys(entityModels)) {
		em, ok := entityModels[intent].(*FewShotEntityModel)
		if !ok {
			err := fmt.Errorf("%w: entity model %T", ErrForeignModel, entityModels[intent])
			span.RecordError(err)
			return domain.ParseResult{}, err
		}
		data.EntityExamples = append(data.EntityExamples, em.Examples...)
	}

	var prompt bytes.Buffer
	if err := f.prompt.Execute(&prompt, data); err != nil {
		return domain.ParseResult{}, fmt.Errorf("failed to execute prompt template: %w", err)
	}

	response, err := f.completer.Complete(ctx, prompt.String(), map[string]any{
		"system":      fewShotSystemPrompt,
		"json":        true,
		"temperature": f.config.Temperature,
		"max_tokens":  f.config.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ParseResult{}, err
	}

	answer, err := f.decodeResponse(response)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ParseResult{}, err
	}

	result := domain.ParseResult{Intent: answer.Intent, IntentProbability: answer.Probability}
	if f.config.UnknownIntent != "" && !slices.Contains(im.Labels, answer.Intent) {
		result.Intent = f.config.UnknownIntent
	}
	if _, ok := entityModels[result.Intent]; ok {
		result.Entities = locateEntities(text, answer)
	}

	span.SetAttributes(
		attribute.String("classifier.intent", result.Intent),
		attribute.Float64("classifier.probability", result.IntentProbability),
		attribute.Int("classifier.entities", len(result.Entities)),
	)
	return result, nil
}

// decodeResponse extracts and validates the JSON answer. Every failure
// matches ports.ErrInvalidResponse.
func (f *FewShot) decodeResponse(response string) (fewShotResponse, error) {
	raw := extractJSON(response)
	if raw == "" {
		return fewShotResponse{}, fmt.Errorf("%w: no JSON object in %d byte response", ports.ErrInvalidResponse, len(response))
	}

	var answer fewShotResponse
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return fewShotResponse{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}
	if err := validate.Struct(answer); err != nil {
		return fewShotResponse{}, fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err)
	}
	return answer, nil
}

// locateEntities maps answered entity values to spans of text, ordered by
// position.
func locateEntities(text string, answer fewShotResponse) []domain.RecognizedEntity {
	loc := newLocator(text)
	var entities []domain.RecognizedEntity
	for _, ev := range answer.Entities {
		start, end, ok := loc.find(ev.Value)
		if !ok {
			continue
		}
		entities = append(entities, domain.RecognizedEntity{
			Role:        ev.Role,
			EntityType:  ev.Type,
			Span:        domain.Span{Start: start, End: end},
			Probability: answer.Probability,
		})
	}
	slices.SortStableFunc(entities, func(a, b domain.RecognizedEntity) int {
		return cmp.Compare(a.Span.Start, b.Span.Start)
	})
	return entities
}

// EncodeIntentModel serializes a model built by a FewShot.
func (f *FewShot) EncodeIntentModel(model ports.IntentModel) ([]byte, error) {
	m, ok := model.(*FewShotIntentModel)
	if !ok {
		return nil, fmt.Errorf("%w: intent model %T", ErrForeignModel, model)
	}
	return json.Marshal(m)
}

// DecodeIntentModel restores a model serialized by EncodeIntentModel.
func (f *FewShot) DecodeIntentModel(data []byte) (ports.IntentModel, error) {
	var m FewShotIntentModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode intent model: %w", err)
	}
	return &m, nil
}

// EncodeEntityModel serializes a model built by a FewShot.
func (f *FewShot) EncodeEntityModel(model ports.EntityModel) ([]byte, error) {
	m, ok := model.(*FewShotEntityModel)
	if !ok {
		return nil, fmt.Errorf("%w: entity model %T", ErrForeignModel, model)
	}
	return json.Marshal(m)
}

// DecodeEntityModel restores a model serialized by EncodeEntityModel.
func (f *FewShot) DecodeEntityModel(data []byte) (ports.EntityModel, error) {
	var m FewShotEntityModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode entity model: %w", err)
	}
	return &m, nil
}
