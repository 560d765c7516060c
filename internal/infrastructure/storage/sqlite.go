package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	apperrors "github.com/davidleathers/callshield-core/internal/domain/errors"
)

// stateKey pins the whole durable state to a single row. The engine keeps
// one record per installation.
const stateKey = "callshield_offline_data"

const schema = `
CREATE TABLE IF NOT EXISTS offline_state (
    key        TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);`

// Store persists the engine state in a local SQLite database. It survives
// process restarts and never requires network access.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open local store").WithCause(err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.NewInternalError("failed to initialize local store schema").WithCause(err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Load reads the persisted record. Missing or corrupt state degrades to a
// fresh default record rather than failing startup.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM offline_state WHERE key = ?`, stateKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read local store").WithCause(err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.Warn("local state is corrupt, starting from defaults",
			zap.Error(err))
		return DefaultRecord(), nil
	}
	rec.repair()
	return &rec, nil
}

// Save upserts the record as a single JSON payload.
func (s *Store) Save(ctx context.Context, rec *Record, updatedAt int64) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewInternalError("failed to encode local state").WithCause(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offline_state (key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		stateKey, string(payload), updatedAt)
	if err != nil {
		return apperrors.NewInternalError("failed to write local store").WithCause(err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing local store: %w", err)
	}
	return nil
}
