package daemon

import "errors"

// Sentinel errors returned by the dispatcher and its components. Callers
// match them with errors.Is; the wrapped message carries the details.
var (
	// ErrNotFound reports an unknown window name, or a variable that no
	// open window references.
	ErrNotFound = errors.New("not found")

	// ErrParse reports a configuration or stylesheet that failed to load.
	ErrParse = errors.New("parse error")

	// ErrBuildFailure reports a widget tree that could not be built or a
	// window the display backend refused to open.
	ErrBuildFailure = errors.New("build failure")

	ErrAlreadyOpen = errors.New("already open")
	ErrNotOpen     = errors.New("not open")

	// ErrSendFailure reports a response that could not be delivered
	// because the caller's reply channel was already used.
	ErrSendFailure = errors.New("response channel gone")
)
