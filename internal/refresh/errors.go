package refresh

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the loop is already running.
	ErrAlreadyRunning = errors.New("refresh loop already running")

	// ErrStopped is returned by Run after Stop was called.
	ErrStopped = errors.New("refresh coordinator stopped")
)
