// Package repository is a small hierarchical content store: nodes with properties and
// content-addressed binaries, read and written through sessions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/remoteassets/internal/datastore"
	"github.com/openmined/remoteassets/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	name TEXT NOT NULL,
	primary_type TEXT NOT NULL,
	resource_type TEXT NOT NULL DEFAULT '',
	props TEXT NOT NULL DEFAULT '{}',
	mime_type TEXT NOT NULL DEFAULT '',
	binary_key TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	modified TEXT NOT NULL,
	user_data TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
`

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNodeNotFound  = errors.New("node not found")
	ErrNotSystemUser = errors.New("not a system user")
)

// AdminUser is always known to the repository and is not a system user.
const AdminUser = "admin"

type Repository struct {
	db          *sqlx.DB
	store       datastore.Store
	systemUsers mapset.Set[string]
	ownsDB      bool
}

type Option func(*Repository)

// WithStore overrides the inline binary store.
func WithStore(store datastore.Store) Option {
	return func(r *Repository) {
		r.store = store
	}
}

// WithSystemUsers registers service identities.
func WithSystemUsers(ids ...string) Option {
	return func(r *Repository) {
		r.systemUsers.Append(ids...)
	}
}

// Open opens (or creates) a repository database at path. Use ":memory:" for tests.
func Open(path string, opts ...Option) (*Repository, error) {
	sqlDB, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1), db.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	repo, err := New(sqlDB, opts...)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	repo.ownsDB = true
	return repo, nil
}

// New wraps an existing database. The schema is applied if missing.
func New(sqlDB *sqlx.DB, opts ...Option) (*Repository, error) {
	if _, err := sqlDB.Exec(schema); err != nil {
		return nil, fmt.Errorf("repository schema: %w", err)
	}

	r := &Repository{
		db:          sqlDB,
		systemUsers: mapset.NewSet[string](),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.store == nil {
		store, err := datastore.NewSqliteStore(sqlDB)
		if err != nil {
			return nil, err
		}
		r.store = store
	}

	return r, nil
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) Store() datastore.Store {
	return r.store
}

func (r *Repository) AddSystemUsers(ids ...string) {
	r.systemUsers.Append(ids...)
}

func (r *Repository) IsSystemUser(userID string) bool {
	return r.systemUsers.Contains(userID)
}

// Login opens a session for the given identity. An empty id logs in as anonymous.
func (r *Repository) Login(userID string) *Session {
	if userID == "" {
		userID = "anonymous"
	}
	return newSession(r, userID)
}

// ServiceLogin opens a session for a registered system user.
func (r *Repository) ServiceLogin(userID string) (*Session, error) {
	if !r.IsSystemUser(userID) {
		return nil, fmt.Errorf("%w: %s", ErrNotSystemUser, userID)
	}
	return newSession(r, userID), nil
}

func (r *Repository) Close() error {
	if !r.ownsDB {
		return nil
	}
	if err := r.db.Close(); err != nil {
		slog.Error("repository close", "error", err)
		return err
	}
	return nil
}

// dbNode is the row form of a Node
type dbNode struct {
	Path         string `db:"path"`
	Parent       string `db:"parent"`
	Name         string `db:"name"`
	PrimaryType  string `db:"primary_type"`
	ResourceType string `db:"resource_type"`
	Props        string `db:"props"`
	MimeType     string `db:"mime_type"`
	BinaryKey    string `db:"binary_key"`
	Size         int64  `db:"size"`
	Modified     string `db:"modified"`
	UserData     string `db:"user_data"`
}

const selectNode = `SELECT path, parent, name, primary_type, resource_type, props, mime_type, binary_key, size, modified, user_data FROM nodes`

func (row *dbNode) toNode() (*Node, error) {
	props := map[string]any{}
	if row.Props != "" {
		if err := jsonUnmarshal([]byte(row.Props), &props); err != nil {
			return nil, fmt.Errorf("decode properties of %s: %w", row.Path, err)
		}
	}

	modified, err := time.Parse(time.RFC3339Nano, row.Modified)
	if err != nil {
		return nil, fmt.Errorf("decode modified of %s: %w", row.Path, err)
	}

	return &Node{
		Path:         row.Path,
		PrimaryType:  row.PrimaryType,
		ResourceType: row.ResourceType,
		Properties:   props,
		MimeType:     row.MimeType,
		BinaryKey:    row.BinaryKey,
		Size:         row.Size,
		Modified:     modified,
		UserData:     row.UserData,
	}, nil
}

func fromNode(n *Node) (*dbNode, error) {
	props, err := jsonMarshal(normalizeProps(n.Properties))
	if err != nil {
		return nil, fmt.Errorf("encode properties of %s: %w", n.Path, err)
	}
	return &dbNode{
		Path:         n.Path,
		Parent:       n.ParentPath(),
		Name:         n.Name(),
		PrimaryType:  n.PrimaryType,
		ResourceType: n.ResourceType,
		Props:        string(props),
		MimeType:     n.MimeType,
		BinaryKey:    n.BinaryKey,
		Size:         n.Size,
		Modified:     n.Modified.UTC().Format(time.RFC3339Nano),
		UserData:     n.UserData,
	}, nil
}

// normalizeProps stores times in a form Node.Time can read back
func normalizeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Repository) getCommitted(ctx context.Context, p string) (*Node, error) {
	var row dbNode
	err := r.db.GetContext(ctx, &row, selectNode+" WHERE path = ?", p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("query node %s: %w", p, err)
	}
	return row.toNode()
}

func (r *Repository) childrenCommitted(ctx context.Context, p string) ([]*Node, error) {
	var rows []dbNode
	if err := r.db.SelectContext(ctx, &rows, selectNode+" WHERE parent = ? ORDER BY path", p); err != nil {
		return nil, fmt.Errorf("query children of %s: %w", p, err)
	}
	return toNodes(rows)
}

func (r *Repository) subtreeCommitted(ctx context.Context, root string) ([]*Node, error) {
	var rows []dbNode
	var err error
	if root == "/" {
		err = r.db.SelectContext(ctx, &rows, selectNode+" ORDER BY path")
	} else {
		lo, hi := subtreeBounds(root)
		err = r.db.SelectContext(ctx, &rows, selectNode+" WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path", root, lo, hi)
	}
	if err != nil {
		return nil, fmt.Errorf("query subtree %s: %w", root, err)
	}
	return toNodes(rows)
}

// subtreeBounds returns the half-open key range of all descendants of root.
// '0' sorts right after '/'.
func subtreeBounds(root string) (string, string) {
	return root + "/", root + "0"
}

func toNodes(rows []dbNode) ([]*Node, error) {
	nodes := make([]*Node, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
