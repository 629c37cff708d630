package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

var (
	_ ports.ModelBuilder = (*Baseline)(nil)
	_ ports.Parser       = (*Baseline)(nil)
)

// BaselineConfig defines the configuration parameters for the Baseline
// classifier.
type BaselineConfig struct {
	// CaseSensitive disables Unicode case folding before comparison.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`

	// UnknownIntent is predicted when no training example reaches
	// MinSimilarity. Empty means the nearest example always wins.
	UnknownIntent string `yaml:"unknown_intent" json:"unknown_intent"`

	// MinSimilarity is the similarity (0.0-1.0) below which UnknownIntent
	// is predicted.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity" validate:"min=0.0,max=1.0"`
}

// Baseline is a deterministic classifier that needs no external service.
// Intent models predict the intent of the nearest training example by
// Levenshtein similarity; entity models are gazetteers of the entity
// values seen in training.
//
// Baseline is stateless and safe for concurrent use.
type Baseline struct {
	config BaselineConfig
	tracer trace.Tracer
}

// NewBaseline creates a Baseline classifier.
// Returns an error if configuration validation fails.
func NewBaseline(config BaselineConfig) (*Baseline, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &Baseline{
		config: config,
		tracer: otel.Tracer("baseline-classifier"),
	}, nil
}

// BuildIntentModel implements ports.ModelBuilder.
func (b *Baseline) BuildIntentModel(
	ctx context.Context,
	bc ports.BuildContext,
	expressions []domain.LabeledExpression,
) (ports.IntentModel, error) {
	_, span := b.tracer.Start(ctx, "Baseline.BuildIntentModel",
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

	model := &BaselineIntentModel{
		Examples:      make([]Example, 0, len(expressions)),
		CaseSensitive: b.config.CaseSensitive,
	}
	for _, expr := range expressions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !slices.Contains(model.Labels, expr.Intent) {
			model.Labels = append(model.Labels, expr.Intent)
		}
		model.Examples = append(model.Examples, Example{Text: model.normalize(expr.Text), Intent: expr.Intent})
	}
	model.index()

	span.SetAttributes(attribute.Int("classifier.intents", len(model.Labels)))
	return model, nil
}

// BuildEntityModel implements ports.ModelBuilder. An intent whose training
// expressions carry no entities gets a model that recognizes nothing.
func (b *Baseline) BuildEntityModel(
	ctx context.Context,
	bc ports.BuildContext,
	intent string,
	expressions []domain.LabeledExpression,
) (ports.EntityModel, error) {
	_, span := b.tracer.Start(ctx, "Baseline.BuildEntityModel",
		trace.WithAttributes(
			attribute.String("classifier.application", bc.Application),
			attribute.String("classifier.intent", intent),
			attribute.Int("classifier.expressions", len(expressions)),
		),
	)
	defer span.End()

	if len(expressions) == 0 {
		span.SetStatus(codes.Error, ports.ErrEmptyTrainingSet.Error())
		return nil, ports.ErrEmptyTrainingSet
	}

	model := &BaselineEntityModel{
		IntentName:    intent,
		Cues:          make(map[string]map[string]int),
		CaseSensitive: b.config.CaseSensitive,
	}
	index := make(map[string]int)
	for _, expr := range expressions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, ent := range expr.Entities {
			if ent.Span.Start < 0 || ent.Span.End > len(expr.Text) || ent.Span.Start >= ent.Span.End {
				err := fmt.Errorf("%w: %s %s in %q", ErrInvalidSpan, ent.Role, ent.Span, expr.Text)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			value := expr.Text[ent.Span.Start:ent.Span.End]
			key := ent.EntityType + "\x00" + value
			if !b.config.CaseSensitive {
				key = ent.EntityType + "\x00" + foldCaser.String(value)
			}
			i, ok := index[key]
			if !ok {
				i = len(model.Entries)
				index[key] = i
				model.Entries = append(model.Entries, GazetteerEntry{
					Value:      value,
					EntityType: ent.EntityType,
					Roles:      make(map[string]int),
				})
			}
			model.Entries[i].Roles[ent.Role]++

			if cue := precedingWord(expr.Text, ent.Span.Start); cue != "" {
				if model.Cues[cue] == nil {
					model.Cues[cue] = make(map[string]int)
				}
				model.Cues[cue][ent.Role]++
			}
		}
	}

	span.SetAttributes(attribute.Int("classifier.gazetteer_size", len(model.Entries)))
	return model, nil
}

// Parse implements ports.Parser.
func (b *Baseline) Parse(
	ctx context.Context,
	pc ports.ParseContext,
	text string,
	intentModel ports.IntentModel,
	entityModels map[string]ports.EntityModel,
) (domain.ParseResult, error) {
	_, span := b.tracer.Start(ctx, "Baseline.Parse",
		trace.WithAttributes(attribute.String("classifier.application", pc.Application)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return domain.ParseResult{}, err
	}

	im, ok := intentModel.(*BaselineIntentModel)
	if !ok {
		err := fmt.Errorf("%w: intent model %T", ErrForeignModel, intentModel)
		span.RecordError(err)
		return domain.ParseResult{}, err
	}

	intent, score := im.nearest(text)
	if b.config.UnknownIntent != "" && score < b.config.MinSimilarity {
		intent = b.config.UnknownIntent
	}
	result := domain.ParseResult{Intent: intent, IntentProbability: score}

	if model, ok := entityModels[intent]; ok {
		em, ok := model.(*BaselineEntityModel)
		if !ok {
			err := fmt.Errorf("%w: entity model %T", ErrForeignModel, model)
			span.RecordError(err)
			return domain.ParseResult{}, err
		}
		result.Entities = em.recognize(text)
	}

	span.SetAttributes(
		attribute.String("classifier.intent", result.Intent),
		attribute.Float64("classifier.probability", result.IntentProbability),
		attribute.Int("classifier.entities", len(result.Entities)),
	)
	return result, nil
}

// EncodeIntentModel serializes a model built by a Baseline.
func (b *Baseline) EncodeIntentModel(model ports.IntentModel) ([]byte, error) {
	m, ok := model.(*BaselineIntentModel)
	if !ok {
		return nil, fmt.Errorf("%w: intent model %T", ErrForeignModel, model)
	}
	return json.Marshal(m)
}

// DecodeIntentModel restores a model serialized by EncodeIntentModel.
func (b *Baseline) DecodeIntentModel(data []byte) (ports.IntentModel, error) {
	var m BaselineIntentModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode intent model: %w", err)
	}
	m.index()
	return &m, nil
}

// EncodeEntityModel serializes a model built by a Baseline.
func (b *Baseline) EncodeEntityModel(model ports.EntityModel) ([]byte, error) {
	m, ok := model.(*BaselineEntityModel)
	if !ok {
		return nil, fmt.Errorf("%w: entity model %T", ErrForeignModel, model)
	}
	return json.Marshal(m)
}

// DecodeEntityModel restores a model serialized by EncodeEntityModel.
func (b *Baseline) DecodeEntityModel(data []byte) (ports.EntityModel, error) {
	var m BaselineEntityModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode entity model: %w", err)
	}
	return &m, nil
}
