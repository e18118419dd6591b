package dpt

import (
	"errors"
	"fmt"
)

// ErrRowOutOfRange is returned when a row index does not exist.
var ErrRowOutOfRange = errors.New("row index out of range")

// RangeError reports a test value that does not fit the declared width.
type RangeError struct {
	Address string
	Type    Code
	Row     int
	Value   int64
	Width   int
}

func (e *RangeError) Error() string {
	lo, hi := Bounds(e.Width)
	addr := e.Address
	if addr == "" {
		addr = "<no address>"
	}
	return fmt.Sprintf("%s (%s) row %d: value %d outside %d-bit range [%d, %d]",
		addr, e.Type, e.Row, e.Value, e.Width, lo, hi)
}
