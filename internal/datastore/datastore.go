// Package datastore holds the binaries referenced by repository nodes.
// Keys are content hashes, so a Put for an existing key is a no-op for the caller.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound   = errors.New("binary not found")
	ErrInvalidKey = errors.New("invalid key")
)

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Key returns the content address of data
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validateKey(key string) bool {
	if len(key) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}

// New builds the store selected by cfg. The inline store shares the repository database.
func New(cfg *Config, repoDB *sqlx.DB) (Store, error) {
	if cfg == nil {
		cfg = &Config{Type: TypeInline}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeInline, "":
		return NewSqliteStore(repoDB)
	case TypeS3:
		return NewS3StoreWithConfig(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown datastore type %q", cfg.Type)
	}
}
