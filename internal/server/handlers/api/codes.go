package api

const (
	// Generic request/server errors
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // access denied
	CodeNotFound       = "E_NOT_FOUND"       // no resource at the requested path

	// Remote asset errors
	CodeNoAsset       = "E_NO_ASSET"       // the path does not belong to a DAM asset
	CodeSyncRunning   = "E_SYNC_RUNNING"   // a bulk sync is already running
	CodeSyncFailed    = "E_SYNC_FAILED"    // the sync failed locally
	CodeRemoteFailure = "E_REMOTE_FAILURE" // the remote server failed or answered unexpectedly
)
