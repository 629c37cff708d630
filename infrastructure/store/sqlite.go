package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ahrav/go-nlpeval/internal/ports"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ModelCodec converts models to and from the bytes SQLiteStore persists.
// Models are opaque to the store, so the adapter that built them supplies
// the codec.
type ModelCodec interface {
	EncodeIntentModel(model ports.IntentModel) ([]byte, error)
	DecodeIntentModel(data []byte) (ports.IntentModel, error)
	EncodeEntityModel(model ports.EntityModel) ([]byte, error)
	DecodeEntityModel(data []byte) (ports.EntityModel, error)
}

// SQLiteStore persists models in a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	codec ModelCodec
	now   func() time.Time
}

var _ ports.ModelStore = (*SQLiteStore)(nil)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	Path string // Path to the database file; empty selects an in-memory database
}

// NewSQLiteStore opens or creates the database at cfg.Path and prepares
// its schema.
func NewSQLiteStore(cfg SQLiteConfig, codec ModelCodec) (*SQLiteStore, error) {
	if codec == nil {
		return nil, errors.New("model codec cannot be nil")
	}
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" would get its own database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, codec: codec, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			application TEXT NOT NULL,
			language TEXT NOT NULL,
			intent TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (application, language, intent)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create models table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) exists(ctx context.Context, key modelKey, op string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM models WHERE application = ? AND language = ? AND intent = ?`,
		key.application, key.language, key.intent,
	).Scan(&n)
	if err != nil {
		return false, ports.NewStoreError(key.String(), op, err)
	}
	return n > 0, nil
}

// IntentModelExists implements ports.ModelStore.
func (s *SQLiteStore) IntentModelExists(ctx context.Context, bc ports.BuildContext) (bool, error) {
	return s.exists(ctx, keyOf(bc.ForIntent("")), "intent_model_exists")
}

// EntityModelExists implements ports.ModelStore.
func (s *SQLiteStore) EntityModelExists(ctx context.Context, bc ports.BuildContext) (bool, error) {
	if bc.Intent == "" {
		return false, nil
	}
	return s.exists(ctx, keyOf(bc), "entity_model_exists")
}

func (s *SQLiteStore) save(ctx context.Context, key modelKey, op string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO models (application, language, intent, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, key.application, key.language, key.intent, payload, s.now().UTC())
	if err != nil {
		return ports.NewStoreError(key.String(), op, err)
	}
	return nil
}

// SaveIntentModel implements ports.ModelStore.
func (s *SQLiteStore) SaveIntentModel(ctx context.Context, bc ports.BuildContext, model ports.IntentModel) error {
	key := keyOf(bc.ForIntent(""))
	payload, err := s.codec.EncodeIntentModel(model)
	if err != nil {
		return ports.NewStoreError(key.String(), "save_intent_model", err)
	}
	return s.save(ctx, key, "save_intent_model", payload)
}

// SaveEntityModel implements ports.ModelStore.
func (s *SQLiteStore) SaveEntityModel(ctx context.Context, bc ports.BuildContext, model ports.EntityModel) error {
	key := keyOf(bc)
	if key.intent == "" {
		return ports.NewStoreError(key.String(), "save_entity_model", errMissingIntent)
	}
	payload, err := s.codec.EncodeEntityModel(model)
	if err != nil {
		return ports.NewStoreError(key.String(), "save_entity_model", err)
	}
	return s.save(ctx, key, "save_entity_model", payload)
}

// LoadIntentModel implements ports.ModelStore.
func (s *SQLiteStore) LoadIntentModel(ctx context.Context, bc ports.BuildContext) (ports.IntentModel, error) {
	key := keyOf(bc.ForIntent(""))

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM models WHERE application = ? AND language = ? AND intent = ''`,
		key.application, key.language,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.NewStoreError(key.String(), "load_intent_model", ports.ErrModelNotFound)
	}
	if err != nil {
		return nil, ports.NewStoreError(key.String(), "load_intent_model", err)
	}

	model, err := s.codec.DecodeIntentModel(payload)
	if err != nil {
		return nil, ports.NewStoreError(key.String(), "load_intent_model", err)
	}
	return model, nil
}

// LoadEntityModels implements ports.ModelStore.
func (s *SQLiteStore) LoadEntityModels(ctx context.Context, bc ports.BuildContext) (map[string]ports.EntityModel, error) {
	key := keyOf(bc.ForIntent(""))

	rows, err := s.db.QueryContext(ctx,
		`SELECT intent, payload FROM models WHERE application = ? AND language = ? AND intent != ''`,
		key.application, key.language,
	)
	if err != nil {
		return nil, ports.NewStoreError(key.String(), "load_entity_models", err)
	}
	defer rows.Close()

	models := make(map[string]ports.EntityModel)
	for rows.Next() {
		var intent string
		var payload []byte
		if err := rows.Scan(&intent, &payload); err != nil {
			return nil, ports.NewStoreError(key.String(), "load_entity_models", err)
		}
		model, err := s.codec.DecodeEntityModel(payload)
		if err != nil {
			return nil, ports.NewStoreError(modelKey{application: key.application, language: key.language, intent: intent}.String(), "load_entity_models", err)
		}
		models[intent] = model
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError(key.String(), "load_entity_models", err)
	}
	return models, nil
}

// DeleteOrphans implements ports.ModelStore.
func (s *SQLiteStore) DeleteOrphans(ctx context.Context, keep map[string][]string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT application, language, intent FROM models`)
	if err != nil {
		return 0, ports.NewStoreError("*", "delete_orphans", err)
	}
	var orphans []modelKey
	for rows.Next() {
		var key modelKey
		if err := rows.Scan(&key.application, &key.language, &key.intent); err != nil {
			rows.Close()
			return 0, ports.NewStoreError("*", "delete_orphans", err)
		}
		if isOrphan(key, keep) {
			orphans = append(orphans, key)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, ports.NewStoreError("*", "delete_orphans", err)
	}

	for _, key := range orphans {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM models WHERE application = ? AND language = ? AND intent = ?`,
			key.application, key.language, key.intent,
		)
		if err != nil {
			return 0, ports.NewStoreError(key.String(), "delete_orphans", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, ports.NewStoreError("*", "delete_orphans", err)
	}
	return len(orphans), nil
}

// isOrphan reports whether a model no longer belongs to a kept
// application or, for entity models, a kept intent.
func isOrphan(key modelKey, keep map[string][]string) bool {
	intents, ok := keep[key.application]
	if !ok {
		return true
	}
	return key.intent != "" && !slices.Contains(intents, key.intent)
}
