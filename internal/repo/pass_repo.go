package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Rollout/internal/domain"
)

const passesSchema = `
	CREATE TABLE IF NOT EXISTS passes (
		id          UUID PRIMARY KEY,
		request_id  UUID,
		connection  TEXT        NOT NULL,
		stage       TEXT        NOT NULL DEFAULT '',
		status      TEXT        NOT NULL,
		tasks       JSONB       NOT NULL DEFAULT '[]',
		executed    INT         NOT NULL DEFAULT 0,
		canceled_by TEXT,
		output      TEXT,
		error       TEXT,
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS passes_request_idx ON passes (request_id);
	CREATE INDEX IF NOT EXISTS passes_connection_idx ON passes (connection, created_at DESC);
`

const passColumns = `
	id, request_id, connection, stage, status, tasks, executed,
	canceled_by, output, error, started_at, finished_at, created_at
`

// PassRepo — история проходов очереди.
type PassRepo struct {
	pool *pgxpool.Pool
}

// NewPassRepo создаёт новый PassRepo.
func NewPassRepo(pool *pgxpool.Pool) *PassRepo {
	return &PassRepo{pool: pool}
}

// EnsureSchema создаёт таблицу passes, если её нет.
func (r *PassRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, passesSchema); err != nil {
		return fmt.Errorf("create passes: %w", err)
	}
	return nil
}

// RecordPass сохраняет проход. Повторная запись обновляет статус.
func (r *PassRepo) RecordPass(ctx context.Context, pass *domain.Pass) error {
	tasksJSON, err := json.Marshal(pass.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}

	query := `
		INSERT INTO passes (` + passColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    executed = EXCLUDED.executed,
		    canceled_by = EXCLUDED.canceled_by,
		    output = EXCLUDED.output,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		pass.ID,
		nullUUID(pass.RequestID),
		pass.Connection,
		pass.Stage,
		pass.Status,
		tasksJSON,
		pass.Executed,
		nullString(pass.CanceledBy),
		nullString(pass.Output),
		nullString(pass.Error),
		pass.StartedAt,
		pass.FinishedAt,
		pass.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	return nil
}

// GetByID возвращает проход по ID.
func (r *PassRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE id = $1`
	return scanPass(r.pool.QueryRow(ctx, query, id))
}

// PassFilter — параметры фильтрации проходов.
type PassFilter struct {
	Connection string
	RequestID  *uuid.UUID
	Status     domain.PassStatus
	Limit      int
	Offset     int
}

// List возвращает проходы с фильтрацией, новые первыми.
func (r *PassRepo) List(ctx context.Context, filter PassFilter) ([]domain.Pass, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT ` + passColumns + `
		FROM passes
		WHERE ($1::text IS NULL OR connection = $1)
		  AND ($2::uuid IS NULL OR request_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Connection),
		nullUUID(filter.RequestID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var passes []domain.Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, *pass)
	}
	return passes, rows.Err()
}

// scanPass сканирует одну строку в Pass.
func scanPass(row pgx.Row) (*domain.Pass, error) {
	var pass domain.Pass
	var tasksJSON []byte
	var canceledBy, output, passError *string

	err := row.Scan(
		&pass.ID,
		&pass.RequestID,
		&pass.Connection,
		&pass.Stage,
		&pass.Status,
		&tasksJSON,
		&pass.Executed,
		&canceledBy,
		&output,
		&passError,
		&pass.StartedAt,
		&pass.FinishedAt,
		&pass.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pass: %w", err)
	}

	if tasksJSON != nil {
		if err := json.Unmarshal(tasksJSON, &pass.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	if canceledBy != nil {
		pass.CanceledBy = *canceledBy
	}
	if output != nil {
		pass.Output = *output
	}
	if passError != nil {
		pass.Error = *passError
	}

	return &pass, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
