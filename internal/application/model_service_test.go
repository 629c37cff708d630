package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nlpeval/infrastructure/store"
	"github.com/ahrav/go-nlpeval/internal/domain"
	"github.com/ahrav/go-nlpeval/internal/ports"
	"github.com/ahrav/go-nlpeval/internal/testutils"
)

func newTestModelService(t *testing.T, builder ports.ModelBuilder) (*ModelService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc, err := NewModelService(builder, st, discardLogger())
	require.NoError(t, err)
	return svc, st
}

func TestNewModelService(t *testing.T) {
	_, err := NewModelService(nil, store.NewMemoryStore(), nil)
	assert.Error(t, err)
	_, err = NewModelService(testutils.NewMockBuilder(), nil, nil)
	assert.Error(t, err)
	svc, err := NewModelService(testutils.NewMockBuilder(), store.NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestModelService_UpdateIntentModel(t *testing.T) {
	ctx := context.Background()
	corpus := testutils.ScenarioCorpus()
	builder := testutils.NewMockBuilder()
	svc, st := newTestModelService(t, builder)
	bc := ports.BuildContext{Application: "app", Language: "en"}

	built, err := svc.UpdateIntentModel(ctx, bc, corpus)
	require.NoError(t, err)
	assert.True(t, built)

	model, err := st.LoadIntentModel(ctx, bc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{testutils.ScenarioIntentA, testutils.ScenarioIntentB}, model.Intents())

	// Rebuilds unless asked to keep an existing model.
	built, err = svc.UpdateIntentModel(ctx, bc, corpus)
	require.NoError(t, err)
	assert.True(t, built)

	bc.OnlyIfNotExists = true
	built, err = svc.UpdateIntentModel(ctx, bc, corpus)
	require.NoError(t, err)
	assert.False(t, built)
	assert.Len(t, builder.IntentBuilds(), 2)
}

func TestModelService_UpdateIntentModelFailure(t *testing.T) {
	builder := testutils.NewMockBuilder()
	builder.IntentErr = errors.New("bad data")
	svc, st := newTestModelService(t, builder)
	bc := ports.BuildContext{Application: "app", Language: "en"}

	built, err := svc.UpdateIntentModel(context.Background(), bc, testutils.ScenarioCorpus())
	assert.False(t, built)
	assert.ErrorIs(t, err, domain.ErrModelBuild)

	exists, err := st.IntentModelExists(context.Background(), bc)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestModelService_UpdateEntityModelForIntent(t *testing.T) {
	ctx := context.Background()
	builder := testutils.NewMockBuilder().FailEntity("broken", errors.New("no entities"))
	svc, st := newTestModelService(t, builder)
	bc := ports.BuildContext{Application: "app", Language: "en", OnlyIfNotExists: true}

	built, err := svc.UpdateEntityModelForIntent(ctx, bc, testutils.ScenarioIntentB, testutils.ScenarioCorpus()[80:])
	require.NoError(t, err)
	assert.True(t, built)

	built, err = svc.UpdateEntityModelForIntent(ctx, bc, testutils.ScenarioIntentB, testutils.ScenarioCorpus()[80:])
	require.NoError(t, err)
	assert.False(t, built, "existing model is kept")

	_, err = svc.UpdateEntityModelForIntent(ctx, bc, "broken", nil)
	var buildErr *domain.EntityModelBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "broken", buildErr.Intent)

	models, err := st.LoadEntityModels(ctx, bc)
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

func TestModelService_UpdateAll(t *testing.T) {
	ctx := context.Background()
	corpus := testutils.GenerateCorpus(120, 2)
	builder := testutils.NewMockBuilder().FailEntity(testutils.IntentPlayMusic, errors.New("no entities"))
	svc, st := newTestModelService(t, builder)
	bc := ports.BuildContext{Application: "app", Language: "en"}

	failed, err := svc.UpdateAll(ctx, bc, corpus)
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.IntentPlayMusic}, failed)

	models, err := st.LoadEntityModels(ctx, bc)
	require.NoError(t, err)
	assert.Len(t, models, 3)
	assert.NotContains(t, models, testutils.IntentPlayMusic)

	builder.IntentErr = errors.New("down")
	_, err = svc.UpdateAll(ctx, bc, corpus)
	assert.ErrorIs(t, err, domain.ErrModelBuild)
}

func TestModelService_DeleteOrphans(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestModelService(t, testutils.NewMockBuilder())
	bc := ports.BuildContext{Application: "app", Language: "en"}

	_, err := svc.UpdateAll(ctx, bc, testutils.ScenarioCorpus())
	require.NoError(t, err)
	_, err = svc.UpdateAll(ctx, ports.BuildContext{Application: "old", Language: "en"}, testutils.ScenarioCorpus())
	require.NoError(t, err)

	removed, err := svc.DeleteOrphans(ctx, map[string][]string{"app": {testutils.ScenarioIntentA}})
	require.NoError(t, err)
	// old: intent model + two entity models; app: intent-B entity model.
	assert.Equal(t, 4, removed)

	models, err := st.LoadEntityModels(ctx, bc)
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

func TestModelService_LoadModels(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestModelService(t, testutils.NewMockBuilder())
	bc := ports.BuildContext{Application: "app", Language: "en"}

	_, _, err := svc.LoadModels(ctx, bc)
	require.ErrorIs(t, err, ports.ErrModelNotFound)

	_, err = svc.UpdateAll(ctx, bc, testutils.ScenarioCorpus())
	require.NoError(t, err)

	intentModel, entityModels, err := svc.LoadModels(ctx, bc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{testutils.ScenarioIntentA, testutils.ScenarioIntentB}, intentModel.Intents())
	require.Len(t, entityModels, 2)
	for intent, m := range entityModels {
		assert.Equal(t, intent, m.Intent())
	}

	_, _, err = svc.LoadModels(ctx, ports.BuildContext{Application: "app", Language: "fr"})
	assert.ErrorIs(t, err, ports.ErrModelNotFound, "languages are stored separately")
}
