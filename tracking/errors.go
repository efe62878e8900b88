package tracking

import "errors"

var (
	// ErrCorruptHeader is returned by Free when the size header in front of
	// the payload does not match the payload, which means the slice was not
	// produced by Allocate, was re-sliced, or the header was overwritten.
	ErrCorruptHeader = errors.New("tracking: corrupt allocation header")

	// ErrAllocationTooLarge is returned when the requested size plus the
	// header would overflow.
	ErrAllocationTooLarge = errors.New("tracking: allocation too large")

	// ErrZeroSizedType is returned by AllocSlice for element types with
	// size zero.
	ErrZeroSizedType = errors.New("tracking: zero-sized element type")
)
