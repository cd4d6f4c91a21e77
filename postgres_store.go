package caper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists saga run state as jsonb rows. The caller owns the
// *sql.DB (and the driver import, typically lib/pq).
type PostgresStore[T any] struct {
	db    *sql.DB
	table string
}

// NewPostgresStore creates a Postgres-backed store writing to the given
// table (default "saga_state" when empty).
func NewPostgresStore[T any](db *sql.DB, table string) *PostgresStore[T] {
	if table == "" {
		table = "saga_state"
	}
	return &PostgresStore[T]{db: db, table: table}
}

// EnsureSchema creates the backing table if it does not exist.
func (p *PostgresStore[T]) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		saga_id    TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`, p.table)
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s table: %w", p.table, err)
	}
	return nil
}

func (p *PostgresStore[T]) Save(ctx context.Context, sagaID string, state State[T]) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (saga_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (saga_id) DO UPDATE SET data = $2, updated_at = $3`, p.table)
	if _, err := p.db.ExecContext(ctx, stmt, sagaID, data, state.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert saga state: %w", err)
	}
	return nil
}

func (p *PostgresStore[T]) Load(ctx context.Context, sagaID string) (*State[T], error) {
	stmt := fmt.Sprintf(`SELECT data FROM %s WHERE saga_id = $1`, p.table)

	var data []byte
	err := p.db.QueryRowContext(ctx, stmt, sagaID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("saga %s not found", sagaID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read saga state: %w", err)
	}

	var state State[T]
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (p *PostgresStore[T]) Delete(ctx context.Context, sagaID string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE saga_id = $1`, p.table)
	if _, err := p.db.ExecContext(ctx, stmt, sagaID); err != nil {
		return fmt.Errorf("failed to delete saga state: %w", err)
	}
	return nil
}
