package memgo

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/memgo/tracking"
)

// AllocSlice allocates a []T of length n through the full stack. The backing
// bytes come from a single Stack.Allocate call, so every layer (budget,
// tracking, leak check) sees the allocation.
//
// Release it with FreeSlice; freeing the raw bytes of a reinterpreted slice
// by hand is easy to get wrong.
//
// n <= 0 returns (nil, nil).
func AllocSlice[T any](s *Stack, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil, tracking.ErrZeroSizedType
	}
	if n > math.MaxInt/elemSize {
		return nil, fmt.Errorf("%w: %d elements of %d bytes", tracking.ErrAllocationTooLarge, n, elemSize)
	}

	buf, err := s.Allocate(n * elemSize)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), n), nil //nolint:gosec // reinterpret the payload as []T
}

// FreeSlice returns a slice obtained from AllocSlice. The slice must have
// its original length. A nil or empty slice is a no-op.
func FreeSlice[T any](s *Stack, buf []T) error {
	if len(buf) == 0 {
		return nil
	}

	var zero T
	size := len(buf) * int(unsafe.Sizeof(zero))

	raw := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), size) //nolint:gosec // reinterpret the elements as payload bytes

	return s.Free(raw)
}
