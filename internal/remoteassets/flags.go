package remoteassets

import (
	"context"
	"time"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/repository"
)

const (
	PropIsRemoteAsset    = "isRemoteAsset"
	PropRemoteSyncFailed = "remoteSyncFailed"
)

// remoteNodePath is the node holding the remote flags of an asset
func remoteNodePath(a *dam.Asset) string {
	return a.ContentPath() + "/" + packmgr.RemoteNodeName
}

func remoteNode(ctx context.Context, s *repository.Session, p string, create bool) (*repository.Node, error) {
	a, err := dam.ResolveToAsset(ctx, s, p)
	if err != nil || a == nil {
		return nil, err
	}
	if create {
		return s.EnsureNode(ctx, remoteNodePath(a), repository.TypeUnstructured)
	}
	return s.Get(ctx, remoteNodePath(a))
}

// SetIsRemoteAsset flags the asset owning p. Clearing the flag removes the property.
// Paths that do not resolve to an asset are ignored.
func SetIsRemoteAsset(ctx context.Context, s *repository.Session, p string, remote bool) error {
	n, err := remoteNode(ctx, s, p, remote)
	if err != nil || n == nil {
		return err
	}
	var v any
	if remote {
		v = true
	}
	return s.SetProperties(ctx, n.Path, map[string]any{PropIsRemoteAsset: v})
}

func IsRemoteAsset(ctx context.Context, s *repository.Session, p string) (bool, error) {
	n, err := remoteNode(ctx, s, p, false)
	if err != nil || n == nil {
		return false, err
	}
	return n.Bool(PropIsRemoteAsset), nil
}

// SetRemoteSyncFailed stamps the time of a failed sync. A zero time clears it.
func SetRemoteSyncFailed(ctx context.Context, s *repository.Session, p string, failed time.Time) error {
	n, err := remoteNode(ctx, s, p, !failed.IsZero())
	if err != nil || n == nil {
		return err
	}
	var v any
	if !failed.IsZero() {
		v = failed.UTC()
	}
	return s.SetProperties(ctx, n.Path, map[string]any{PropRemoteSyncFailed: v})
}

// RemoteSyncFailed returns the time of the last failed sync, if any
func RemoteSyncFailed(ctx context.Context, s *repository.Session, p string) (time.Time, bool, error) {
	n, err := remoteNode(ctx, s, p, false)
	if err != nil || n == nil {
		return time.Time{}, false, err
	}
	t, ok := n.Time(PropRemoteSyncFailed)
	return t, ok, nil
}
