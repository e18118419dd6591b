package sim

import "errors"

// Simulator errors.
var (
	// ErrClosed is returned when sending on a closed installation.
	ErrClosed = errors.New("installation closed")

	// ErrUnknownService is returned for a reaction service other than
	// write or response.
	ErrUnknownService = errors.New("unknown reaction service")
)
