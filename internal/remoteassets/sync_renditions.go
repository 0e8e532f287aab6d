package remoteassets

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
)

// SyncAssetRenditions pulls the renditions of the given assets, each mapped to the
// renditions to leave out. With an action manager the transfer runs in the background
// on its own service session; otherwise it runs on session and commits it.
// Failures are recorded on the assets and never returned.
func (s *Service) SyncAssetRenditions(ctx context.Context, session *repository.Session, assets map[string][]string) {
	if len(assets) == 0 {
		return
	}
	assets = maps.Clone(assets)

	if s.actions != nil {
		err := s.actions.Defer("sync asset renditions", func(ctx context.Context, session *repository.Session) error {
			return s.syncRenditions(ctx, session, assets)
		})
		if err == nil {
			return
		}
		slog.Error("remote assets defer sync, running inline", "error", err)
	}

	// the inline sync outlives the request that triggered it; failures are logged and
	// stamped on the assets
	ctx = context.WithoutCancel(ctx)
	s.syncRenditions(ctx, session, assets)
	if session.HasChanges() {
		if err := session.Commit(ctx); err != nil {
			slog.Error("remote assets save renditions sync", "assets", len(assets), "error", err)
		}
	}
}

// SyncAssetRenditionPaths syncs every rendition of the given assets that is not eager.
func (s *Service) SyncAssetRenditionPaths(ctx context.Context, session *repository.Session, paths ...string) {
	assets := make(map[string][]string, len(paths))
	for _, p := range paths {
		assets[p] = nil
	}
	s.SyncAssetRenditions(ctx, session, assets)
}

// syncRenditions is one rendition package transfer. The requested paths leave the
// sync state when it ends, however it ends.
func (s *Service) syncRenditions(ctx context.Context, session *repository.Session, assets map[string][]string) error {
	paths := slices.Sorted(maps.Keys(assets))
	defer func() {
		for _, p := range paths {
			s.state.Remove(p)
		}
	}()

	start := s.now()
	done := s.metrics.begin(KindRenditions)

	err := s.transferRenditions(ctx, session, assets, paths)
	done(err)
	if err != nil {
		err = &SyncError{Op: "sync renditions", Paths: paths, Server: s.cfg.Server, Err: err}
		slog.Error("remote assets renditions sync", "error", err)
		s.stampFailed(ctx, session, paths, start)
		return err
	}

	slog.Info("remote assets renditions synced", "assets", len(paths))
	return nil
}

func (s *Service) transferRenditions(ctx context.Context, session *repository.Session, assets map[string][]string, paths []string) error {
	for _, p := range paths {
		a, err := dam.ResolveToAsset(ctx, session, p)
		if err != nil {
			return err
		}
		if err := s.renditions.AddSyncingRendition(ctx, a); err != nil {
			return err
		}
	}
	if err := session.Commit(ctx); err != nil {
		return err
	}

	pkg := packmgr.NewRenditionsPackage(assets, s.cfg.EagerRenditions)
	tracker := NewRenditionTracker()
	if err := s.transfer(ctx, session, pkg, s.importOptions(packmgr.ImportModeUpdate, tracker)); err != nil {
		return err
	}
	if err := session.Commit(ctx); err != nil {
		return err
	}

	// every requested asset is local now, including the ones that had nothing to install
	synced := mapset.NewThreadUnsafeSet[string](paths...)
	synced.Append(tracker.Paths()...)
	local := synced.ToSlice()
	slices.Sort(local)
	for _, p := range local {
		if err := s.markLocal(ctx, session, p); err != nil {
			return err
		}
	}
	return session.Commit(ctx)
}

func (s *Service) markLocal(ctx context.Context, session *repository.Session, p string) error {
	a, err := dam.ResolveToAsset(ctx, session, p)
	if err != nil || a == nil {
		return err
	}
	if err := SetIsRemoteAsset(ctx, session, a.Path(), false); err != nil {
		return err
	}
	if err := SetRemoteSyncFailed(ctx, session, a.Path(), time.Time{}); err != nil {
		return err
	}
	if err := s.renditions.RemoveSyncingRendition(ctx, a); err != nil {
		return err
	}
	s.state.Remove(a.Path())
	return nil
}
