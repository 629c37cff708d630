package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nlpeval/internal/ports"
)

type stubIntentModel struct {
	Labels []string `json:"labels"`
}

func (m *stubIntentModel) Intents() []string { return m.Labels }

type stubEntityModel struct {
	Label string `json:"label"`
}

func (m *stubEntityModel) Intent() string { return m.Label }

type stubCodec struct{}

func (stubCodec) EncodeIntentModel(model ports.IntentModel) ([]byte, error) {
	m, ok := model.(*stubIntentModel)
	if !ok {
		return nil, errors.New("unsupported intent model")
	}
	return json.Marshal(m)
}

func (stubCodec) DecodeIntentModel(data []byte) (ports.IntentModel, error) {
	var m stubIntentModel
	err := json.Unmarshal(data, &m)
	return &m, err
}

func (stubCodec) EncodeEntityModel(model ports.EntityModel) ([]byte, error) {
	m, ok := model.(*stubEntityModel)
	if !ok {
		return nil, errors.New("unsupported entity model")
	}
	return json.Marshal(m)
}

func (stubCodec) DecodeEntityModel(data []byte) (ports.EntityModel, error) {
	var m stubEntityModel
	err := json.Unmarshal(data, &m)
	return &m, err
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(SQLiteConfig{}, stubCodec{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stores returns every ModelStore implementation under the same contract.
func stores(t *testing.T) map[string]ports.ModelStore {
	return map[string]ports.ModelStore{
		"memory": NewMemoryStore(),
		"sqlite": newSQLite(t),
	}
}

func TestModelStore_IntentModels(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bc := ports.BuildContext{Application: "travel", Language: "en"}

			exists, err := s.IntentModelExists(ctx, bc)
			require.NoError(t, err)
			assert.False(t, exists)

			_, err = s.LoadIntentModel(ctx, bc)
			assert.ErrorIs(t, err, ports.ErrModelNotFound)
			var storeErr *ports.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, "travel/en", storeErr.Key)

			require.NoError(t, s.SaveIntentModel(ctx, bc, &stubIntentModel{Labels: []string{"a", "b"}}))
			exists, err = s.IntentModelExists(ctx, bc)
			require.NoError(t, err)
			assert.True(t, exists)

			// An intent on the context does not change the intent model key.
			exists, err = s.IntentModelExists(ctx, bc.ForIntent("a"))
			require.NoError(t, err)
			assert.True(t, exists)

			model, err := s.LoadIntentModel(ctx, bc)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, model.Intents())

			require.NoError(t, s.SaveIntentModel(ctx, bc, &stubIntentModel{Labels: []string{"c"}}))
			model, err = s.LoadIntentModel(ctx, bc)
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, model.Intents(), "save replaces")

			other := ports.BuildContext{Application: "travel", Language: "fr"}
			exists, err = s.IntentModelExists(ctx, other)
			require.NoError(t, err)
			assert.False(t, exists, "languages are separate keys")
		})
	}
}

func TestModelStore_EntityModels(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bc := ports.BuildContext{Application: "travel", Language: "en"}

			err := s.SaveEntityModel(ctx, bc, &stubEntityModel{Label: "x"})
			assert.Error(t, err, "entity models need an intent")

			require.NoError(t, s.SaveEntityModel(ctx, bc.ForIntent("book"), &stubEntityModel{Label: "book"}))
			require.NoError(t, s.SaveEntityModel(ctx, bc.ForIntent("weather"), &stubEntityModel{Label: "weather"}))
			require.NoError(t, s.SaveEntityModel(ctx,
				ports.BuildContext{Application: "other", Language: "en", Intent: "book"},
				&stubEntityModel{Label: "book"}))

			exists, err := s.EntityModelExists(ctx, bc.ForIntent("book"))
			require.NoError(t, err)
			assert.True(t, exists)
			exists, err = s.EntityModelExists(ctx, bc.ForIntent("greet"))
			require.NoError(t, err)
			assert.False(t, exists)

			models, err := s.LoadEntityModels(ctx, bc)
			require.NoError(t, err)
			require.Len(t, models, 2)
			assert.Equal(t, "book", models["book"].Intent())
			assert.Equal(t, "weather", models["weather"].Intent())
		})
	}
}

func TestModelStore_DeleteOrphans(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			travel := ports.BuildContext{Application: "travel", Language: "en"}
			retired := ports.BuildContext{Application: "retired", Language: "en"}

			require.NoError(t, s.SaveIntentModel(ctx, travel, &stubIntentModel{}))
			require.NoError(t, s.SaveEntityModel(ctx, travel.ForIntent("book"), &stubEntityModel{Label: "book"}))
			require.NoError(t, s.SaveEntityModel(ctx, travel.ForIntent("gone"), &stubEntityModel{Label: "gone"}))
			require.NoError(t, s.SaveIntentModel(ctx, retired, &stubIntentModel{}))
			require.NoError(t, s.SaveEntityModel(ctx, retired.ForIntent("book"), &stubEntityModel{Label: "book"}))

			removed, err := s.DeleteOrphans(ctx, map[string][]string{"travel": {"book"}})
			require.NoError(t, err)
			assert.Equal(t, 3, removed)

			exists, err := s.IntentModelExists(ctx, travel)
			require.NoError(t, err)
			assert.True(t, exists)
			exists, err = s.IntentModelExists(ctx, retired)
			require.NoError(t, err)
			assert.False(t, exists)

			models, err := s.LoadEntityModels(ctx, travel)
			require.NoError(t, err)
			assert.Len(t, models, 1)
			assert.Contains(t, models, "book")

			removed, err = s.DeleteOrphans(ctx, map[string][]string{"travel": {"book"}})
			require.NoError(t, err)
			assert.Zero(t, removed)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")
	ctx := context.Background()
	bc := ports.BuildContext{Application: "travel", Language: "en"}

	s, err := NewSQLiteStore(SQLiteConfig{Path: path}, stubCodec{})
	require.NoError(t, err)
	require.NoError(t, s.SaveIntentModel(ctx, bc, &stubIntentModel{Labels: []string{"book"}}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(SQLiteConfig{Path: path}, stubCodec{})
	require.NoError(t, err)
	defer reopened.Close()

	model, err := reopened.LoadIntentModel(ctx, bc)
	require.NoError(t, err)
	assert.Equal(t, []string{"book"}, model.Intents())
}

func TestSQLiteStore_CodecErrors(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	bc := ports.BuildContext{Application: "travel", Language: "en"}

	err := s.SaveIntentModel(ctx, bc, foreignIntentModel{})
	require.Error(t, err)
	var storeErr *ports.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save_intent_model", storeErr.Operation)

	_, err = NewSQLiteStore(SQLiteConfig{}, nil)
	assert.Error(t, err)
}

type foreignIntentModel struct{}

func (foreignIntentModel) Intents() []string { return nil }

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.IntentModelExists(ctx, ports.BuildContext{Application: "a", Language: "en"})
	assert.ErrorIs(t, err, context.Canceled)
}
