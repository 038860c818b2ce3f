package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS rollout_state (
		handle     TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (handle, key)
	)
`

// PGStore хранит состояние в таблице rollout_state.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore создаёт PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create rollout_state: %w", err)
	}
	return nil
}

// Get возвращает значение.
func (s *PGStore) Get(ctx context.Context, handle, key string) (string, bool, error) {
	query := `SELECT value FROM rollout_state WHERE handle = $1 AND key = $2`

	var value string
	err := s.pool.QueryRow(ctx, query, handle, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select state: %w", err)
	}
	return value, true, nil
}

// Set сохраняет значение (upsert).
func (s *PGStore) Set(ctx context.Context, handle, key, value string) error {
	query := `
		INSERT INTO rollout_state (handle, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (handle, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, handle, key, value); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
