package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

// Store records task results for status lookup by opaque id
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new task result store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SetStatus upserts the status and optional result document of a task.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, name, status string, result json.RawMessage) error {
	query := `
		INSERT INTO task_results (id, name, status, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			modified_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, id, name, status, result); err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	return nil
}

// Status returns the recorded result of a task. A task never seen by a
// worker reports PENDING rather than an error.
func (s *Store) Status(ctx context.Context, id uuid.UUID) (*db.TaskResult, error) {
	query := `
		SELECT id, name, status, result, created_at, modified_at
		FROM task_results
		WHERE id = $1
	`

	var result db.TaskResult
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&result.ID,
		&result.Name,
		&result.Status,
		&result.Result,
		&result.CreatedAt,
		&result.ModifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &db.TaskResult{ID: id, Status: db.TaskPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task status: %w", err)
	}
	return &result, nil
}
