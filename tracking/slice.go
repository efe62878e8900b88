package tracking

import (
	"fmt"
	"math"
	"unsafe"
)

// AllocSlice allocates a []T of length n through the tracking allocator.
// The backing bytes come from a single Allocate call, so the slice shows up
// in the allocator's statistics as n*sizeof(T) payload bytes plus the
// header.
//
// Payloads start HeaderSize bytes into the upstream block. Go types align
// to at most 8 bytes, so every element type is correctly aligned.
//
// n <= 0 returns (nil, nil).
func AllocSlice[T any](a *Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, ErrZeroSizedType
	}
	if n > math.MaxInt/elemSize {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", ErrAllocationTooLarge, n, elemSize)
	}

	buf, err := a.Allocate(n * elemSize)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), n), nil //nolint:gosec // reinterpret the payload as []T
}

// FreeSlice returns a slice obtained from AllocSlice. The slice must have
// its original length. A nil or empty slice is a no-op.
func FreeSlice[T any](a *Allocator, s []T) error {
	if len(s) == 0 {
		return nil
	}

	var zero T
	size := len(s) * int(unsafe.Sizeof(zero))

	buf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), size) //nolint:gosec // reinterpret the elements as payload bytes

	return a.Free(buf)
}
