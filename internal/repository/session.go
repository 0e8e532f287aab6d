package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/openmined/remoteassets/internal/datastore"
)

type opKind int

const (
	opPut opKind = iota
	opDelete
)

type op struct {
	kind opKind
	path string
	node *Node
}

// Session is a transient view of the repository. Writes are buffered until Commit and
// are visible to reads made through the same session. Committed state, misses
// included, is cached on first read; commits from other sessions show up after Refresh.
type Session struct {
	repo     *Repository
	userID   string
	userData string

	mu       sync.Mutex
	ops      []op
	binaries map[string][]byte
	cache    map[string]*Node
	closed   bool
}

func newSession(r *Repository, userID string) *Session {
	return &Session{
		repo:     r,
		userID:   userID,
		binaries: map[string][]byte{},
		cache:    map[string]*Node{},
	}
}

func (s *Session) Repository() *Repository {
	return s.repo
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) IsSystemUser() bool {
	return s.repo.IsSystemUser(s.userID)
}

// SetUserData sets the marker stamped on every node written by this session.
func (s *Session) SetUserData(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userData = data
}

func (s *Session) UserData() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userData
}

// Get returns the node at p, or nil if there is none.
func (s *Session) Get(ctx context.Context, p string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.getLocked(ctx, CleanPath(p))
}

func (s *Session) getLocked(ctx context.Context, p string) (*Node, error) {
	node, cached := s.cache[p]
	if !cached {
		var err error
		node, err = s.repo.getCommitted(ctx, p)
		if err != nil {
			return nil, err
		}
		s.cache[p] = node
	}

	node = node.Clone()
	for _, o := range s.ops {
		switch o.kind {
		case opPut:
			if o.path == p {
				node = o.node.Clone()
			}
		case opDelete:
			if IsAncestorOrSelf(o.path, p) {
				node = nil
			}
		}
	}
	return node, nil
}

func (s *Session) Exists(ctx context.Context, p string) (bool, error) {
	n, err := s.Get(ctx, p)
	return n != nil, err
}

// Children lists the direct children of p ordered by path.
func (s *Session) Children(ctx context.Context, p string) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	p = CleanPath(p)
	committed, err := s.repo.childrenCommitted(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.overlay(committed, func(path string) bool {
		return ParentPath(path) == p && path != p
	}), nil
}

// Subtree lists root and all of its descendants ordered by path.
func (s *Session) Subtree(ctx context.Context, root string) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	root = CleanPath(root)
	committed, err := s.repo.subtreeCommitted(ctx, root)
	if err != nil {
		return nil, err
	}
	return s.overlay(committed, func(path string) bool {
		return IsAncestorOrSelf(root, path)
	}), nil
}

// overlay replays pending ops over a committed listing
func (s *Session) overlay(committed []*Node, match func(string) bool) []*Node {
	byPath := make(map[string]*Node, len(committed))
	for _, n := range committed {
		byPath[n.Path] = n
	}
	for _, o := range s.ops {
		switch o.kind {
		case opPut:
			if match(o.path) {
				byPath[o.path] = o.node.Clone()
			}
		case opDelete:
			for p := range byPath {
				if IsAncestorOrSelf(o.path, p) {
					delete(byPath, p)
				}
			}
		}
	}

	out := make([]*Node, 0, len(byPath))
	for _, n := range byPath {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return out
}

// Put creates or replaces a node. The parent must exist.
func (s *Session) Put(ctx context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.putLocked(ctx, n)
}

func (s *Session) putLocked(ctx context.Context, n *Node) error {
	n = n.Clone()
	n.Path = CleanPath(n.Path)
	if n.Path == "/" {
		return fmt.Errorf("cannot write the root node")
	}

	parent := n.ParentPath()
	if parent != "/" {
		pn, err := s.getLocked(ctx, parent)
		if err != nil {
			return err
		}
		if pn == nil {
			return fmt.Errorf("%w: parent %s of %s", ErrNodeNotFound, parent, n.Path)
		}
	}

	n.Modified = time.Now().UTC()
	s.ops = append(s.ops, op{kind: opPut, path: n.Path, node: n})
	return nil
}

// EnsureNode returns the node at p, creating it and any missing ancestors.
// Ancestors are created as sling:Folder, the leaf with primaryType.
func (s *Session) EnsureNode(ctx context.Context, p, primaryType string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.ensureLocked(ctx, CleanPath(p), primaryType)
}

func (s *Session) ensureLocked(ctx context.Context, p, primaryType string) (*Node, error) {
	if p == "/" {
		return NewNode("/", "rep:root"), nil
	}

	existing, err := s.getLocked(ctx, p)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if _, err := s.ensureLocked(ctx, ParentPath(p), TypeSlingFolder); err != nil {
		return nil, err
	}

	n := NewNode(p, primaryType)
	if err := s.putLocked(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// SetProperties merges props into the node at p. A nil value removes the property.
func (s *Session) SetProperties(ctx context.Context, p string, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	n, err := s.getLocked(ctx, CleanPath(p))
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, p)
	}

	for k, v := range props {
		if v == nil {
			delete(n.Properties, k)
		} else {
			n.Properties[k] = v
		}
	}
	return s.putLocked(ctx, n)
}

// SetBinary attaches data to the node at p.
func (s *Session) SetBinary(ctx context.Context, p string, data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	n, err := s.getLocked(ctx, CleanPath(p))
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, p)
	}

	key := datastore.Key(data)
	s.binaries[key] = data
	n.BinaryKey = key
	n.Size = int64(len(data))
	n.MimeType = mimeType
	return s.putLocked(ctx, n)
}

// Binary reads the binary of n, including binaries not yet committed.
func (s *Session) Binary(ctx context.Context, n *Node) ([]byte, error) {
	if n == nil || !n.HasBinary() {
		return nil, fmt.Errorf("%w: no binary", ErrNodeNotFound)
	}

	s.mu.Lock()
	data, pending := s.binaries[n.BinaryKey]
	s.mu.Unlock()
	if pending {
		return data, nil
	}

	return s.repo.store.Get(ctx, n.BinaryKey)
}

// Delete removes p and its subtree. Deleting a missing node is not an error.
func (s *Session) Delete(ctx context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.ops = append(s.ops, op{kind: opDelete, path: CleanPath(p)})
	return nil
}

func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops) > 0
}

// Revert drops all pending changes.
func (s *Session) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.binaries = map[string][]byte{}
}

// Refresh forgets cached committed state so that changes committed by other sessions
// become visible. Pending changes are kept.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = map[string]*Node{}
}

// Commit persists all pending changes atomically.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if len(s.ops) == 0 {
		return nil
	}

	// binaries first, the node rows only reference them
	for _, o := range s.ops {
		if o.kind != opPut || !o.node.HasBinary() {
			continue
		}
		data, ok := s.binaries[o.node.BinaryKey]
		if !ok {
			continue
		}
		if err := s.repo.store.Put(ctx, o.node.BinaryKey, data); err != nil {
			return fmt.Errorf("commit binary of %s: %w", o.path, err)
		}
	}

	tx, err := s.repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit begin: %w", err)
	}
	defer tx.Rollback()

	for _, o := range s.ops {
		switch o.kind {
		case opPut:
			o.node.UserData = s.userData
			row, err := fromNode(o.node)
			if err != nil {
				return err
			}
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO nodes (path, parent, name, primary_type, resource_type, props, mime_type, binary_key, size, modified, user_data)
				VALUES (:path, :parent, :name, :primary_type, :resource_type, :props, :mime_type, :binary_key, :size, :modified, :user_data)
				ON CONFLICT(path) DO UPDATE SET
					primary_type = excluded.primary_type,
					resource_type = excluded.resource_type,
					props = excluded.props,
					mime_type = excluded.mime_type,
					binary_key = excluded.binary_key,
					size = excluded.size,
					modified = excluded.modified,
					user_data = excluded.user_data`, row)
			if err != nil {
				return fmt.Errorf("commit put %s: %w", o.path, err)
			}
		case opDelete:
			lo, hi := subtreeBounds(o.path)
			_, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`, o.path, lo, hi)
			if err != nil {
				return fmt.Errorf("commit delete %s: %w", o.path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.Debug("repository commit", "user", s.userID, "changes", len(s.ops), "userData", s.userData)
	s.ops = nil
	s.binaries = map[string][]byte{}
	s.cache = map[string]*Node{}
	return nil
}

// Close logs the session out. Uncommitted changes are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.ops) > 0 {
		slog.Debug("session closed with pending changes", "user", s.userID, "changes", len(s.ops))
	}
	s.ops = nil
	s.binaries = map[string][]byte{}
	s.cache = nil
	s.closed = true
}
