// Package postgres provides a kv.Store on a Postgres table (schema from internal/db/migrations).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"alumni-tracker/internal/kv"
)

// Store persists records in kv_records. Update locks the single row with
// SELECT ... FOR UPDATE for the duration of the read-modify-write.
type Store struct {
	db *sql.DB
}

// New returns a Store using db. db is typically opened with internal/db.Open.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var rec []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM kv_records WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Put upserts the record for id.
func (s *Store) Put(ctx context.Context, collection, id string, record []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (collection, id, record) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		collection, id, string(record),
	)
	if err != nil {
		return fmt.Errorf("postgres: put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create inserts the record only when id is absent.
func (s *Store) Create(ctx context.Context, collection, id string, record []byte) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (collection, id, record) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(record),
	)
	if err != nil {
		return fmt.Errorf("postgres: create %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: create %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return kv.ErrConflict
	}
	return nil
}

// Update reads the row FOR UPDATE, applies fn and writes the result in one transaction.
func (s *Store) Update(ctx context.Context, collection, id string, fn kv.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin update %s/%s: %w", collection, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM kv_records WHERE collection = $1 AND id = $2 FOR UPDATE`, collection, id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: load %s/%s: %w", collection, id, err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE kv_records SET record = $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
		collection, id, string(next),
	); err != nil {
		return fmt.Errorf("postgres: write %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_records WHERE collection = $1 AND id = $2`, collection, id,
	); err != nil {
		return fmt.Errorf("postgres: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns all records in collection ordered by id.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM kv_records WHERE collection = $1 ORDER BY id`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var rec []byte
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
	}
	return out, nil
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
