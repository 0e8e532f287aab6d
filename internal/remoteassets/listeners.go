package remoteassets

import (
	"context"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
)

var (
	assetRoots = []string{dam.MountPoint}
	tagRoots   = []string{"/content/cq:tags", "/etc/tags"}
)

const (
	contentSegment    = "/" + dam.JcrContent + "/"
	renditionsSegment = "/" + dam.JcrContent + "/" + dam.RenditionsFolder + "/"
)

// PathsTracker records the installed paths of one category, in install order.
type PathsTracker struct {
	mu     sync.Mutex
	accept func(action, p string) bool
	seen   mapset.Set[string]
	paths  []string
}

var _ packmgr.ProgressListener = (*PathsTracker)(nil)

func newPathsTracker(accept func(action, p string) bool) *PathsTracker {
	return &PathsTracker{accept: accept, seen: mapset.NewThreadUnsafeSet[string]()}
}

// NewAssetTracker tracks newly added asset nodes. The node type is read from s.
func NewAssetTracker(ctx context.Context, s *repository.Session) *PathsTracker {
	return newPathsTracker(func(action, p string) bool {
		if action != packmgr.ActionAdded || !under(assetRoots, p) || strings.Contains(p, contentSegment) {
			return false
		}
		n, err := s.Get(ctx, p)
		return err == nil && n != nil && n.PrimaryType == dam.TypeAsset
	})
}

// NewRenditionTracker tracks installed rendition nodes, added or updated.
func NewRenditionTracker() *PathsTracker {
	return newPathsTracker(func(_, p string) bool {
		return under(assetRoots, p) && strings.Contains(p, renditionsSegment)
	})
}

// NewTagTracker tracks installed tag nodes.
func NewTagTracker() *PathsTracker {
	return newPathsTracker(func(_, p string) bool {
		return under(tagRoots, p) && !strings.HasSuffix(p, ".content.xml") && !strings.Contains(p, contentSegment)
	})
}

func (t *PathsTracker) OnMessage(action, p string) {
	if !t.accept(action, p) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen.Add(p) {
		t.paths = append(t.paths, p)
	}
}

func (t *PathsTracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// under reports whether p lies strictly below one of the roots
func under(roots []string, p string) bool {
	for _, root := range roots {
		if p == root {
			continue
		}
		if ok, _ := doublestar.Match(root+"/**", p); ok {
			return true
		}
	}
	return false
}
