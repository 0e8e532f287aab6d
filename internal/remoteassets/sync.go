package remoteassets

import (
	"context"
	"log/slog"
	"time"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
)

// transfer runs one package through the remote package manager and installs it.
//
// The remote package is removed after the install attempt, whether it succeeded or
// not, even when ctx was canceled during the install. A failure before the install
// (configure, build or get) leaves the package on the remote server.
func (s *Service) transfer(ctx context.Context, session *repository.Session, pkg *packmgr.Package, opts packmgr.ImportOptions) error {
	if err := s.client.Create(ctx, pkg); err != nil {
		return err
	}
	if err := s.client.Configure(ctx, pkg); err != nil {
		return err
	}
	if err := s.client.Build(ctx, pkg); err != nil {
		return err
	}
	data, err := s.client.Download(ctx, pkg)
	if err != nil {
		return err
	}

	result, installErr := packmgr.Install(ctx, session, data, opts)
	if installErr == nil {
		slog.Debug("remote package installed", "package", pkg.Name, "installed", result.Installed, "skipped", result.Skipped)
	}

	rmErr := s.client.Remove(context.WithoutCancel(ctx), pkg)
	if installErr != nil {
		if rmErr != nil {
			slog.Warn("remote package left behind", "server", s.cfg.Server, "package", pkg.ID(), "error", rmErr)
		}
		return installErr
	}
	return rmErr
}

func (s *Service) importOptions(mode packmgr.ImportMode, listener packmgr.ProgressListener) packmgr.ImportOptions {
	return packmgr.ImportOptions{
		Mode:              mode,
		AutoSaveThreshold: s.cfg.SaveInterval,
		NonRecursive:      true,
		Listener:          listener,
	}
}

// SyncAssets pulls the configured DAM trees without their renditions, flags every new
// asset as remote and gives it placeholder renditions. Returns the number of new assets.
func (s *Service) SyncAssets(ctx context.Context, session *repository.Session) (int, error) {
	pkg := packmgr.NewAssetsPackage(s.cfg.DamSyncPaths, s.cfg.EagerRenditions)
	if pkg.IsEmpty() {
		slog.Info("remote assets no dam sync paths configured")
		s.metrics.skipped(KindAssets)
		return 0, nil
	}

	done := s.metrics.begin(KindAssets)
	tracker := NewAssetTracker(ctx, session)
	if err := s.transfer(ctx, session, pkg, s.importOptions(packmgr.ImportModeMerge, tracker)); err != nil {
		session.Revert()
		err = &SyncError{Op: "sync assets", Paths: s.cfg.DamSyncPaths, Server: s.cfg.Server, Err: err}
		done(err)
		slog.Error("remote assets sync", "error", err)
		return 0, err
	}
	done(nil)

	paths := tracker.Paths()
	s.addPlaceholderRenditions(ctx, session, paths)

	slog.Info("remote assets synced", "assets", len(paths))
	return len(paths), nil
}

// SyncTags pulls the configured tag trees. Returns the number of new tags.
func (s *Service) SyncTags(ctx context.Context, session *repository.Session) (int, error) {
	pkg := packmgr.NewTagsPackage(s.cfg.TagSyncPaths)
	if pkg.IsEmpty() {
		slog.Info("remote assets no tag sync paths configured")
		s.metrics.skipped(KindTags)
		return 0, nil
	}

	done := s.metrics.begin(KindTags)
	tracker := NewTagTracker()
	if err := s.transfer(ctx, session, pkg, s.importOptions(packmgr.ImportModeMerge, tracker)); err != nil {
		session.Revert()
		err = &SyncError{Op: "sync tags", Paths: s.cfg.TagSyncPaths, Server: s.cfg.Server, Err: err}
		done(err)
		slog.Error("remote tags sync", "error", err)
		return 0, err
	}
	done(nil)

	paths := tracker.Paths()
	slog.Info("remote tags synced", "tags", len(paths))
	return len(paths), nil
}

func (s *Service) addPlaceholderRenditions(ctx context.Context, session *repository.Session, paths []string) {
	count := 0
	for _, p := range paths {
		a, err := dam.GetAsset(ctx, session, p)
		if err != nil || a == nil {
			continue
		}
		if ok, err := session.Exists(ctx, a.ContentPath()); err != nil || !ok {
			continue
		}

		if err := SetIsRemoteAsset(ctx, session, p, true); err != nil {
			slog.Error("remote assets flag", "path", p, "error", err)
			continue
		}
		if err := s.renditions.SetPlaceholderRenditions(ctx, a); err != nil {
			slog.Error("remote assets placeholder renditions", "path", p, "error", err)
		}
		if err := s.renditions.Placeholders().SetOriginalRenditionPlaceholder(ctx, a); err != nil {
			slog.Error("remote assets original placeholder", "path", p, "error", err)
		}

		count++
		if count%s.cfg.SaveInterval == 0 {
			if err := session.Commit(ctx); err != nil {
				slog.Error("remote assets save flags", "error", err)
			}
		}
	}

	if session.HasChanges() {
		if err := session.Commit(ctx); err != nil {
			slog.Error("remote assets save flags", "error", err)
		}
	}
}

// stampFailed records a failed sync on every asset. Uncommitted changes are dropped.
func (s *Service) stampFailed(ctx context.Context, session *repository.Session, paths []string, at time.Time) {
	session.Revert()
	for _, p := range paths {
		if err := SetRemoteSyncFailed(ctx, session, p, at); err != nil {
			slog.Error("remote assets stamp failure", "path", p, "error", err)
		}
	}
	if err := session.Commit(ctx); err != nil {
		slog.Error("remote assets save failure", "error", err)
	}
}
