package remoteassets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openmined/remoteassets/internal/packmgr"
)

var (
	ErrNoAsset       = errors.New("no asset")
	ErrNothingToSync = errors.New("nothing to sync")
)

// SyncError is a failed package transfer. Remote failures wrap a *packmgr.RemoteError,
// everything else is a local persistence failure.
type SyncError struct {
	Op     string
	Paths  []string
	Server string
	Err    error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("remote assets %s from %s", e.Op, e.Server)
	if len(e.Paths) > 0 {
		msg += " [" + strings.Join(e.Paths, ", ") + "]"
	}
	return msg + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether the failure happened on the remote server or on the way to it
func (e *SyncError) IsRemote() bool {
	return packmgr.IsRemoteError(e.Err)
}

func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
