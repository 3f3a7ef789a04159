package domain

import "errors"

// Backend failure sentinels. Both surface as retryable terminal results;
// the caller may re-invoke the run with a fresh transcript.
var (
	ErrBackendTimeout     = errors.New("reasoning backend timed out")
	ErrBackendUnavailable = errors.New("reasoning backend unavailable")
)
