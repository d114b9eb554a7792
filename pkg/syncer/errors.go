package syncer

import "errors"

var (
	// ErrDeviceUnreachable indicates the terminal could not be reached or
	// timed out. Fatal for the current sync cycle; the next scheduled tick
	// retries the whole device.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrEmptyLog indicates the terminal was reachable but its punch log
	// holds no records. A no-op outcome for a sync, a hard precondition
	// failure for the administrative purge.
	ErrEmptyLog = errors.New("device punch log is empty")

	// ErrSyncInProgress indicates another sync for the same device is
	// already running. Syncs are serialized per device.
	ErrSyncInProgress = errors.New("sync already in progress for device")
)
