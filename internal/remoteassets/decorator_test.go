package remoteassets

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) resolver(t *testing.T, userID string) *repository.Resolver {
	t.Helper()
	r := repository.NewResolver(h.local.Login(userID), h.svc.Decorator())
	t.Cleanup(r.Close)
	return r
}

func TestDecorator_SyncsRemoteAsset(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	ctx := context.Background()

	resolver := h.resolver(t, "alice")
	res, err := resolver.GetResource(ctx, fooPath)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, fooPath, res.Path)

	a, err := dam.GetAsset(ctx, resolver.Session(), fooPath)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, fooOriginal, renditionBytes(t, a, dam.OriginalRendition))
	assert.Equal(t, fooWeb, renditionBytes(t, a, webRendition))

	remote, err := IsRemoteAsset(ctx, resolver.Session(), fooPath)
	require.NoError(t, err)
	assert.False(t, remote)
	assert.False(t, h.svc.SyncState().Contains(fooPath))

	// local now, nothing else is requested
	_, err = resolver.GetResource(ctx, fooPath)
	require.NoError(t, err)
	assert.Equal(t, 1, h.author.Calls("create"))
}

func TestDecorator_FailureQuietPeriod(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	ctx := context.Background()
	placeholder := renditionBytes(t, h.asset(t, fooPath), dam.OriginalRendition)

	h.author.SetFault("build", http.StatusServiceUnavailable)
	failedAt := h.clock.Now()

	_, err := h.resolver(t, "alice").GetResource(ctx, fooPath)
	require.NoError(t, err)

	assert.True(t, isRemote(t, h, fooPath))
	at, failed := syncFailed(t, h, fooPath)
	require.True(t, failed)
	assert.True(t, at.Equal(failedAt))
	assert.Equal(t, 1, h.author.Calls("create"))

	// a minute later the asset is still quiet and keeps its placeholder
	h.author.SetFault("build", 0)
	h.clock.Advance(time.Minute)
	_, err = h.resolver(t, "alice").GetResource(ctx, fooPath)
	require.NoError(t, err)
	assert.Equal(t, 1, h.author.Calls("create"))
	assert.Equal(t, placeholder, renditionBytes(t, h.asset(t, fooPath), dam.OriginalRendition))

	// once the retry delay has passed the sync runs again
	h.clock.Advance(14 * time.Minute)
	_, err = h.resolver(t, "alice").GetResource(ctx, fooPath)
	require.NoError(t, err)
	assert.Equal(t, 2, h.author.Calls("create"))
	assert.False(t, isRemote(t, h, fooPath))
	_, failed = syncFailed(t, h, fooPath)
	assert.False(t, failed)
	assert.Equal(t, fooOriginal, renditionBytes(t, h.asset(t, fooPath), dam.OriginalRendition))
}

func TestDecorator_QuietPeriodBoundary(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	ctx := context.Background()

	failedAt := h.clock.Now()
	s := h.session(t)
	require.NoError(t, SetRemoteSyncFailed(ctx, s, fooPath, failedAt))
	require.NoError(t, s.Commit(ctx))

	tests := []struct {
		name string
		at   time.Duration
		kind AssetKind
	}{
		{"just failed", 0, KindRemoteQuiet},
		{"one minute", time.Minute, KindRemoteQuiet},
		{"just before", 15*time.Minute - time.Nanosecond, KindRemoteQuiet},
		{"at the delay", 15 * time.Minute, KindRemotePending},
		{"later", time.Hour, KindRemotePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.Get(ctx, fooPath)
			require.NoError(t, err)
			kind, err := ClassifyAsset(ctx, s, n, h.svc.SyncState(), h.cfg.RetryDelayDuration(), failedAt.Add(tt.at))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestDecorator_Eligibility(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	ctx := context.Background()

	h.local.AddSystemUsers("indexer", "renderer")
	h.cfg.WhitelistedServiceUsers = []string{"renderer"}
	require.NoError(t, h.cfg.Validate())

	t.Run("system user", func(t *testing.T) {
		_, err := h.resolver(t, "indexer").GetResource(ctx, fooPath)
		require.NoError(t, err)
		assert.Equal(t, 0, h.author.Calls("create"))
		assert.True(t, isRemote(t, h, fooPath))
	})

	t.Run("in flight", func(t *testing.T) {
		h.svc.SyncState().Add(fooPath)
		defer h.svc.SyncState().Remove(fooPath)
		_, err := h.resolver(t, "alice").GetResource(ctx, fooPath)
		require.NoError(t, err)
		assert.Equal(t, 0, h.author.Calls("create"))
	})

	t.Run("nested resolution", func(t *testing.T) {
		nested := context.WithValue(ctx, decoratingKey{}, true)
		_, err := h.resolver(t, "alice").GetResource(nested, fooPath)
		require.NoError(t, err)
		assert.Equal(t, 0, h.author.Calls("create"))
	})

	t.Run("not an asset", func(t *testing.T) {
		_, err := h.resolver(t, "alice").GetResource(ctx, fooPath+"/jcr:content")
		require.NoError(t, err)
		assert.Equal(t, 0, h.author.Calls("create"))
	})

	t.Run("outside the sync paths", func(t *testing.T) {
		h.cfg.DamSyncPaths = []string{"/content/dam/elsewhere"}
		defer func() { h.cfg.DamSyncPaths = []string{"/content/dam/site"} }()
		_, err := h.resolver(t, "alice").GetResource(ctx, fooPath)
		require.NoError(t, err)
		assert.Equal(t, 0, h.author.Calls("create"))
	})

	t.Run("whitelisted service user", func(t *testing.T) {
		_, err := h.resolver(t, "renderer").GetResource(ctx, fooPath)
		require.NoError(t, err)
		assert.Equal(t, 1, h.author.Calls("create"))
		assert.False(t, isRemote(t, h, fooPath))
	})
}

func TestDecorator_CollectsInsideRequest(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	c := NewCollector(WithRemoteCheck(h.svc.RemoteCheck(context.Background())))
	ctx := WithCollector(context.Background(), c)
	resolver := h.resolver(t, "alice")

	for _, p := range []string{fooPath, barPath, fooPath} {
		_, err := resolver.GetResource(ctx, p)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, h.author.Calls("create"))
	assert.Equal(t, 2, c.Len())
	assert.True(t, h.svc.SyncState().Contains(fooPath))

	h.svc.SyncCollected(ctx, c)

	assert.Equal(t, 1, h.author.Calls("create"))
	assert.Equal(t, 1, h.author.Calls("get"))
	assert.False(t, isRemote(t, h, fooPath))
	assert.False(t, isRemote(t, h, barPath))
	assert.Equal(t, barOriginal, renditionBytes(t, h.asset(t, barPath), dam.OriginalRendition))
	assert.Zero(t, h.svc.SyncState().Len())
}
