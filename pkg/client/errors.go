package client

import (
	"github.com/charlie0129/gazectl/internal/client"
)

var (
	// ErrDaemonNotRunning is returned when the daemon is not running
	ErrDaemonNotRunning = client.ErrNotRunning

	// ErrPermissionDenied is returned when the user does not have permission to perform the requested action
	ErrPermissionDenied = client.ErrPermissionDenied

	// ErrNotFound is returned when 404 is returned from the daemon
	ErrNotFound = client.ErrNotFound
)
