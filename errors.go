package memgo

import (
	"errors"
	"fmt"
)

var (
	// ErrLeaksDetected is returned by Stack.Close when the leak-check layer
	// still holds live allocations.
	ErrLeaksDetected = errors.New("memgo: leaks detected")

	// ErrClosed is returned by Stack operations after Close.
	ErrClosed = errors.New("memgo: stack closed")
)

// LeakError reports the live allocations found when a stack with leak
// checking enabled is closed.
//
// errors.Is(err, ErrLeaksDetected) matches it; the rendered leak report is
// available via Report.
type LeakError struct {
	Count  int
	Bytes  int64
	Report string
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("memgo: leaks detected: %d allocation(s), %d byte(s) live", e.Count, e.Bytes)
}

func (e *LeakError) Unwrap() error { return ErrLeaksDetected }
