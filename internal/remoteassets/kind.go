package remoteassets

import (
	"context"
	"time"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
)

// AssetKind is what the decorator needs to know about a resolved resource.
type AssetKind int

const (
	// KindNone is anything that is not a DAM asset
	KindNone AssetKind = iota
	// KindLocal is an asset whose binaries are local
	KindLocal
	// KindRemotePending is a remote asset that may be synced now
	KindRemotePending
	// KindRemoteSyncing is a remote asset with a sync in flight
	KindRemoteSyncing
	// KindRemoteQuiet is a remote asset inside the quiet period after a failed sync
	KindRemoteQuiet
)

func (k AssetKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemotePending:
		return "remote-pending"
	case KindRemoteSyncing:
		return "remote-syncing"
	case KindRemoteQuiet:
		return "remote-quiet"
	}
	return "none"
}

// ClassifyAsset resolves the kind of the node once, from its type, flags and the
// in flight set.
func ClassifyAsset(ctx context.Context, s *repository.Session, n *repository.Node, state *SyncState, retryDelay time.Duration, now time.Time) (AssetKind, error) {
	if n == nil || !dam.IsDamPath(n.Path) || n.PrimaryType != dam.TypeAsset {
		return KindNone, nil
	}
	if state.Contains(n.Path) {
		return KindRemoteSyncing, nil
	}

	remote, err := IsRemoteAsset(ctx, s, n.Path)
	if err != nil {
		return KindNone, err
	}
	if !remote {
		return KindLocal, nil
	}

	failed, ok, err := RemoteSyncFailed(ctx, s, n.Path)
	if err != nil {
		return KindNone, err
	}
	if ok && now.Before(failed.Add(retryDelay)) {
		return KindRemoteQuiet, nil
	}
	return KindRemotePending, nil
}
