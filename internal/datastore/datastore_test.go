package datastore

import (
	"context"
	"testing"

	"github.com/openmined/remoteassets/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	sqldb, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	store, err := NewSqliteStore(sqldb)
	require.NoError(t, err)
	return store
}

func TestSqliteStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	data := []byte("original rendition bytes")
	key := Key(data)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, key, data))
	// second put of the same content is accepted
	require.NoError(t, store.Put(ctx, key, data))

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSqliteStore_InvalidKey(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), "../etc/passwd", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default inline", Config{}, false},
		{"inline", Config{Type: TypeInline}, false},
		{"s3 missing block", Config{Type: TypeS3}, true},
		{"s3 missing bucket", Config{Type: TypeS3, S3: &S3Config{Region: "us-east-1", AccessKey: "a", SecretKey: "s"}}, true},
		{"s3 bad endpoint", Config{Type: TypeS3, S3: &S3Config{BucketName: "b", Region: "r", AccessKey: "a", SecretKey: "s", Endpoint: "minio:9000"}}, true},
		{"s3 ok", Config{Type: TypeS3, S3: &S3Config{BucketName: "b", Region: "r", AccessKey: "a", SecretKey: "s", Endpoint: "http://minio:9000"}}, false},
		{"unknown", Config{Type: "gcs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestS3ObjectKey(t *testing.T) {
	s := NewS3Store(nil, &S3Config{Prefix: "remoteassets"})
	key := Key([]byte("x"))
	assert.Equal(t, "remoteassets/"+key[:2]+"/"+key, s.objectKey(key))
}
