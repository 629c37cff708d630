package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
)

// ModelService maintains the stored models of applications: it rebuilds
// intent and entity models from expressions and removes models that no
// longer belong to any known application or intent.
type ModelService struct {
	builder ports.ModelBuilder
	store   ports.ModelStore
	logger  *slog.Logger
}

// NewModelService creates a ModelService. A nil logger selects slog.Default.
// NewModelService returns an error if builder or store is nil.
func NewModelService(builder ports.ModelBuilder, store ports.ModelStore, logger *slog.Logger) (*ModelService, error) {
	if builder == nil {
		return nil, errors.New("model builder cannot be nil")
	}
	if store == nil {
		return nil, errors.New("model store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelService{
		builder: builder,
		store:   store,
		logger:  logger.With("component", "model_service"),
	}, nil
}

// UpdateIntentModel builds and stores the intent model for bc's
// application and language. When bc.OnlyIfNotExists is set and a model is
// already stored, nothing is built. It reports whether a model was built.
func (s *ModelService) UpdateIntentModel(
	ctx context.Context,
	bc ports.BuildContext,
	expressions []domain.LabeledExpression,
) (bool, error) {
	if bc.OnlyIfNotExists {
		exists, err := s.store.IntentModelExists(ctx, bc)
		if err != nil {
			return false, fmt.Errorf("check intent model: %w", err)
		}
		if exists {
			s.logger.Debug("intent model exists, skipping build",
				"application", bc.Application, "language", bc.Language)
			return false, nil
		}
	}

	model, err := s.builder.BuildIntentModel(ctx, bc, expressions)
	if err != nil {
		return false, domain.NewModelBuildError(len(expressions), err)
	}
	if err := s.store.SaveIntentModel(ctx, bc, model); err != nil {
		return false, fmt.Errorf("save intent model: %w", err)
	}

	s.logger.Info("intent model updated",
		"application", bc.Application, "language", bc.Language, "expressions", len(expressions))
	return true, nil
}

// UpdateEntityModelForIntent builds and stores the entity model of one
// intent. It honours bc.OnlyIfNotExists like UpdateIntentModel and reports
// whether a model was built.
func (s *ModelService) UpdateEntityModelForIntent(
	ctx context.Context,
	bc ports.BuildContext,
	intent string,
	expressions []domain.LabeledExpression,
) (bool, error) {
	bc = bc.ForIntent(intent)
	if bc.OnlyIfNotExists {
		exists, err := s.store.EntityModelExists(ctx, bc)
		if err != nil {
			return false, fmt.Errorf("check entity model: %w", err)
		}
		if exists {
			s.logger.Debug("entity model exists, skipping build",
				"application", bc.Application, "language", bc.Language, "intent", intent)
			return false, nil
		}
	}

	model, err := s.builder.BuildEntityModel(ctx, bc, intent, expressions)
	if err != nil {
		return false, domain.NewEntityModelBuildError(intent, err)
	}
	if err := s.store.SaveEntityModel(ctx, bc, model); err != nil {
		return false, fmt.Errorf("save entity model: %w", err)
	}

	s.logger.Info("entity model updated",
		"application", bc.Application, "language", bc.Language, "intent", intent, "expressions", len(expressions))
	return true, nil
}

// UpdateAll rebuilds the intent model and every intent's entity model from
// expressions. Entity model failures are logged and skipped like in an
// evaluation run; an intent model failure stops the update.
// It returns the intents whose entity model could not be built.
func (s *ModelService) UpdateAll(
	ctx context.Context,
	bc ports.BuildContext,
	expressions []domain.LabeledExpression,
) ([]string, error) {
	if _, err := s.UpdateIntentModel(ctx, bc, expressions); err != nil {
		return nil, err
	}

	var failed []string
	for _, g := range groupByIntent(expressions) {
		if _, err := s.UpdateEntityModelForIntent(ctx, bc, g.intent, g.expressions); err != nil {
			var buildErr *domain.EntityModelBuildError
			if !errors.As(err, &buildErr) {
				return failed, err
			}
			s.logger.Warn("entity model build failed", "intent", g.intent, "error", err)
			failed = append(failed, g.intent)
		}
	}
	return failed, nil
}

// LoadModels reads back the stored intent model of bc's application and
// language together with its entity models keyed by intent. The error
// matches ports.ErrModelNotFound when no intent model is stored.
func (s *ModelService) LoadModels(
	ctx context.Context,
	bc ports.BuildContext,
) (ports.IntentModel, map[string]ports.EntityModel, error) {
	intentModel, err := s.store.LoadIntentModel(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("load intent model: %w", err)
	}
	entityModels, err := s.store.LoadEntityModels(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("load entity models: %w", err)
	}
	s.logger.Debug("models loaded",
		"application", bc.Application, "language", bc.Language, "entity_models", len(entityModels))
	return intentModel, entityModels, nil
}

// DeleteOrphans removes stored models whose application is not a key of
// keep or whose intent is not listed for its application.
func (s *ModelService) DeleteOrphans(ctx context.Context, keep map[string][]string) (int, error) {
	removed, err := s.store.DeleteOrphans(ctx, keep)
	if err != nil {
		return removed, fmt.Errorf("delete orphans: %w", err)
	}
	if removed > 0 {
		s.logger.Info("orphan models deleted", "count", removed)
	}
	return removed, nil
}
