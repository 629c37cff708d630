// Package store provides ports.ModelStore implementations: an in-process
// map for tests and single runs, and a SQLite-backed store that survives
// restarts.
package store

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

// modelKey identifies a stored model. Intent is empty for intent models.
type modelKey struct {
	application string
	language    string
	intent      string
}

func keyOf(bc ports.BuildContext) modelKey {
	return modelKey{application: bc.Application, language: bc.Language, intent: bc.Intent}
}

func (k modelKey) String() string {
	if k.intent == "" {
		return fmt.Sprintf("%s/%s", k.application, k.language)
	}
	return fmt.Sprintf("%s/%s/%s", k.application, k.language, k.intent)
}

// MemoryStore keeps models in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	intent map[modelKey]ports.IntentModel
	entity map[modelKey]ports.EntityModel
}

var _ ports.ModelStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intent: make(map[modelKey]ports.IntentModel),
		entity: make(map[modelKey]ports.EntityModel),
	}
}

// IntentModelExists implements ports.ModelStore.
func (s *MemoryStore) IntentModelExists(ctx context.Context, bc ports.BuildContext) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.intent[keyOf(bc.ForIntent(""))]
	return ok, nil
}

// EntityModelExists implements ports.ModelStore.
func (s *MemoryStore) EntityModelExists(ctx context.Context, bc ports.BuildContext) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entity[keyOf(bc)]
	return ok, nil
}

// SaveIntentModel implements ports.ModelStore.
func (s *MemoryStore) SaveIntentModel(ctx context.Context, bc ports.BuildContext, model ports.IntentModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent[keyOf(bc.ForIntent(""))] = model
	return nil
}

// SaveEntityModel implements ports.ModelStore.
func (s *MemoryStore) SaveEntityModel(ctx context.Context, bc ports.BuildContext, model ports.EntityModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bc.Intent == "" {
		return ports.NewStoreError(keyOf(bc).String(), "save_entity_model", errMissingIntent)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity[keyOf(bc)] = model
	return nil
}

// LoadIntentModel implements ports.ModelStore.
func (s *MemoryStore) LoadIntentModel(ctx context.Context, bc ports.BuildContext) (ports.IntentModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := keyOf(bc.ForIntent(""))
	s.mu.RLock()
	defer s.mu.RUnlock()
	model, ok := s.intent[key]
	if !ok {
		return nil, ports.NewStoreError(key.String(), "load_intent_model", ports.ErrModelNotFound)
	}
	return model, nil
}

// LoadEntityModels implements ports.ModelStore.
func (s *MemoryStore) LoadEntityModels(ctx context.Context, bc ports.BuildContext) (map[string]ports.EntityModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	models := make(map[string]ports.EntityModel)
	for key, model := range s.entity {
		if key.application == bc.Application && key.language == bc.Language {
			models[key.intent] = model
		}
	}
	return models, nil
}

// DeleteOrphans implements ports.ModelStore.
func (s *MemoryStore) DeleteOrphans(ctx context.Context, keep map[string][]string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.intent) + len(s.entity)
	maps.DeleteFunc(s.intent, func(key modelKey, _ ports.IntentModel) bool {
		return isOrphan(key, keep)
	})
	maps.DeleteFunc(s.entity, func(key modelKey, _ ports.EntityModel) bool {
		return isOrphan(key, keep)
	})
	return before - len(s.intent) - len(s.entity), nil
}
