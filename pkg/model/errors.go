package model

import (
	"errors"
	"fmt"
)

// Model errors.
var (
	// ErrUntestable wraps every reason an element cannot be run.
	ErrUntestable = errors.New("element is not testable")

	// ErrNoCommand is returned for an element without a command datapoint.
	ErrNoCommand = errors.New("element has no command datapoint")

	// ErrModelNotFound is returned when a library key is unknown.
	ErrModelNotFound = errors.New("model not found")
)

// CardinalityError reports a datapoint whose row count differs from the
// element's command datapoint.
type CardinalityError struct {
	Address string
	Rows    int
	Want    int
}

func (e *CardinalityError) Error() string {
	addr := e.Address
	if addr == "" {
		addr = "<no address>"
	}
	return fmt.Sprintf("%s has %d test values, want %d", addr, e.Rows, e.Want)
}
