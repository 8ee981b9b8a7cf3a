package client

import "errors"

var (
	// ErrNotRunning is returned when nothing listens on the unix socket
	ErrNotRunning = errors.New("daemon not running")

	// ErrPermissionDenied is returned when the socket cannot be opened by the current user
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when the server answers 404
	ErrNotFound = errors.New("404 not found")
)
