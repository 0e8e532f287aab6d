package remoteassets

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	fooPath = "/content/dam/site/foo.png"
	barPath = "/content/dam/site/bar.jpg"

	webRendition   = "cq5dam.web.1280.1280.png"
	thumbRendition = "cq5dam.thumbnail.48.48.png"
)

var (
	fooOriginal = []byte("remote-foo-original")
	fooWeb      = []byte("remote-foo-web")
	fooThumb    = []byte("remote-foo-thumb")
	barOriginal = []byte("remote-bar-original")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	local      *repository.Repository
	authorRepo *repository.Repository
	author     *packmgr.AuthorServer
	cfg        *Config
	svc        *Service
	clock      *fakeClock
	metrics    *Metrics
}

func newTestRepo(t *testing.T, name string) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAuthor(t *testing.T, repo *repository.Repository) {
	t.Helper()
	ctx := context.Background()
	s := repo.Login(repository.AdminUser)
	defer s.Close()

	foo, err := dam.CreateAsset(ctx, s, fooPath, fooOriginal, "image/png")
	require.NoError(t, err)
	_, err = foo.AddRendition(ctx, webRendition, fooWeb, "image/png")
	require.NoError(t, err)
	_, err = foo.AddRendition(ctx, thumbRendition, fooThumb, "image/png")
	require.NoError(t, err)

	_, err = dam.CreateAsset(ctx, s, barPath, barOriginal, "image/jpeg")
	require.NoError(t, err)
	_, err = dam.CreateAsset(ctx, s, "/content/dam/other/baz.png", []byte("baz"), "image/png")
	require.NoError(t, err)

	_, err = s.EnsureNode(ctx, "/content/cq:tags/site/red", "cq:Tag")
	require.NoError(t, err)
	_, err = s.EnsureNode(ctx, "/content/cq:tags/site/blue", "cq:Tag")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	authorRepo := newTestRepo(t, "author.db")
	seedAuthor(t, authorRepo)
	author := packmgr.NewAuthorServer(authorRepo, "admin", "secret")
	ts := httptest.NewServer(author.Handler())
	t.Cleanup(ts.Close)

	cfg := &Config{
		Server:          ts.URL,
		Username:        "admin",
		Password:        "secret",
		AllowInsecure:   true,
		DamSyncPaths:    []string{"/content/dam/site"},
		TagSyncPaths:    []string{"/content/cq:tags/site"},
		EagerRenditions: []string{thumbRendition},
		LazyRenditions:  []string{"cq5dam.web.1280.1280.{extension}"},
		RetryDelay:      15,
		SaveInterval:    2,
	}

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	metrics := MustNewMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithClock(clock.Now), WithMetrics(metrics)}, opts...)

	local := newTestRepo(t, "local.db")
	svc, err := NewService(cfg, local, opts...)
	require.NoError(t, err)

	return &harness{
		local:      local,
		authorRepo: authorRepo,
		author:     author,
		cfg:        cfg,
		svc:        svc,
		clock:      clock,
		metrics:    metrics,
	}
}

// bootstrap runs the bulk asset sync so the local repository holds remote assets.
// Author call counters start from zero afterwards.
func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	session, err := h.svc.ServiceSession()
	require.NoError(t, err)
	defer session.Close()

	n, err := h.svc.SyncAssets(ctx, session)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	h.author.ResetCalls()
}

func (h *harness) session(t *testing.T) *repository.Session {
	t.Helper()
	s := h.local.Login(repository.AdminUser)
	t.Cleanup(s.Close)
	return s
}

func (h *harness) asset(t *testing.T, p string) *dam.Asset {
	t.Helper()
	a, err := dam.GetAsset(context.Background(), h.session(t), p)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a
}

func renditionBytes(t *testing.T, a *dam.Asset, name string) []byte {
	t.Helper()
	ctx := context.Background()
	r, err := a.Rendition(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, r, "rendition %s", name)
	data, err := r.Data(ctx)
	require.NoError(t, err)
	return data
}

func isRemote(t *testing.T, h *harness, p string) bool {
	t.Helper()
	remote, err := IsRemoteAsset(context.Background(), h.session(t), p)
	require.NoError(t, err)
	return remote
}

func syncFailed(t *testing.T, h *harness, p string) (time.Time, bool) {
	t.Helper()
	at, ok, err := RemoteSyncFailed(context.Background(), h.session(t), p)
	require.NoError(t, err)
	return at, ok
}
