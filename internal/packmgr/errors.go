package packmgr

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnsuccessful      = errors.New("remote reported failure")
	ErrNotCreated        = errors.New("package not created")
)

// RemoteError is a failed call to the remote package manager.
type RemoteError struct {
	Op         string
	Server     string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("packmgr %s on %s", e.Op, e.Server)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err came from the remote package manager
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
