// Package sqlite provides a file-backed kv.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alumni-tracker/internal/kv"
	"alumni-tracker/internal/kv/sqlite/migrations"
)

// Store persists records in a single kv_records table. Transactions start with
// BEGIN IMMEDIATE so the read inside Update already holds the write lock.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the record for id.
func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var rec []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM kv_records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Put upserts the record for id.
func (s *Store) Put(ctx context.Context, collection, id string, record []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (collection, id, record, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		collection, id, record, nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create inserts the record only when id is absent.
func (s *Store) Create(ctx context.Context, collection, id string, record []byte) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (collection, id, record, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO NOTHING`,
		collection, id, record, nowMillis(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: create %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return kv.ErrConflict
	}
	return nil
}

// Update reads, transforms and writes the record inside one immediate transaction.
func (s *Store) Update(ctx context.Context, collection, id string, fn kv.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin update %s/%s: %w", collection, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM kv_records WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: load %s/%s: %w", collection, id, err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE kv_records SET record = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		next, nowMillis(), collection, id,
	); err != nil {
		return fmt.Errorf("sqlite: write %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_records WHERE collection = ? AND id = ?`, collection, id,
	); err != nil {
		return fmt.Errorf("sqlite: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns all records in collection.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM kv_records WHERE collection = ? ORDER BY id`, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", collection, err)
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var rec []byte
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", collection, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", collection, err)
	}
	return out, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}
