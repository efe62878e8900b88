package fixedpool

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted is returned by Alloc when every slot is live.
	ErrExhausted = errors.New("fixedpool: pool exhausted")

	// ErrInvalidCapacity is returned by New for non-positive capacities or
	// capacities beyond the int32 slot index range.
	ErrInvalidCapacity = errors.New("fixedpool: invalid capacity")

	// ErrZeroSizedType is returned by New when the element type has size
	// zero. Slot ownership checks rely on address arithmetic, which is
	// meaningless for zero-sized types.
	ErrZeroSizedType = errors.New("fixedpool: zero-sized element type")

	// ErrNotInPool reports a pointer outside the pool's slot storage.
	ErrNotInPool = errors.New("fixedpool: pointer not owned by pool")

	// ErrSlotNotLive reports a pointer to a slot that is currently free,
	// either a double free or a pointer that was never allocated.
	ErrSlotNotLive = errors.New("fixedpool: slot is not live")
)

// InvalidPointerError describes why Free rejected a pointer. It wraps
// ErrNotInPool or ErrSlotNotLive, so callers can match with errors.Is.
type InvalidPointerError struct {
	Addr   uintptr
	Reason string
	err    error
}

// Error implements the error interface.
func (e *InvalidPointerError) Error() string {
	return fmt.Sprintf("fixedpool: invalid pointer 0x%x: %s", e.Addr, e.Reason)
}

// Unwrap returns the underlying sentinel error.
func (e *InvalidPointerError) Unwrap() error {
	return e.err
}
