package bus

import "errors"

// Bus errors.
var (
	// ErrNotConnected is returned when the monitor is not running.
	ErrNotConnected = errors.New("bus not connected")

	// ErrAlreadyRunning is returned by Start on a running monitor.
	ErrAlreadyRunning = errors.New("monitor already running")

	// ErrLinkClosed is returned by a link after Close.
	ErrLinkClosed = errors.New("link closed")
)
