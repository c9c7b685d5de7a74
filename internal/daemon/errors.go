package daemon

import "git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"

var (
	// ErrRunInProgress is returned when a backup run is requested while one is active.
	ErrRunInProgress = errors.DaemonError("a backup run is already in progress").Warning().Build()

	// ErrNotRunning is returned when work is requested from a stopped daemon.
	ErrNotRunning = errors.DaemonError("daemon is not running").Build()
)
