package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schemaBinaries = `
CREATE TABLE IF NOT EXISTS binaries (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	size INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`

// SqliteStore keeps binaries in a table next to the nodes.
type SqliteStore struct {
	db *sqlx.DB
}

func NewSqliteStore(db *sqlx.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store: nil db")
	}
	if _, err := db.Exec(schemaBinaries); err != nil {
		return nil, fmt.Errorf("sqlite store schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Put(ctx context.Context, key string, data []byte) error {
	if !validateKey(key) {
		return ErrInvalidKey
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO binaries (key, data, size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, data, len(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("put binary %s: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM binaries WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get binary %s: %w", key, err)
	}
	return data, nil
}

func (s *SqliteStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM binaries WHERE key = ?`, key); err != nil {
		return false, fmt.Errorf("exists binary %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *SqliteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM binaries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete binary %s: %w", key, err)
	}
	return nil
}
