package memgo

import (
	"unsafe"
)

// Alignment is the byte alignment guaranteed by GoAllocator (64 bytes,
// one cache line, sufficient for any Go type and for SIMD-friendly layouts).
const Alignment = 64

// Allocator is the byte-allocator contract shared by every layer in this
// module. The heap allocator, the arena, the tracking and leak wrappers and
// the budget wrapper all satisfy it, so layers compose freely.
type Allocator interface {
	// Allocate returns a zeroed slice of exactly size bytes.
	// A size <= 0 returns (nil, nil) with no accounting.
	Allocate(size int) ([]byte, error)

	// Free returns a slice previously obtained from Allocate. The slice must
	// be exactly the one Allocate returned (same base pointer and length).
	// Freeing nil or an empty slice is a no-op.
	Free(buf []byte) error
}

// GoAllocator allocates from the Go heap with cache-line alignment.
//
// Free is a no-op: storage is reclaimed by the garbage collector once the
// caller drops the slice. This makes GoAllocator the right base layer for
// general use, while Arena serves workloads that need off-heap memory.
type GoAllocator struct{}

// NewGoAllocator creates a heap-backed allocator.
func NewGoAllocator() *GoAllocator {
	return &GoAllocator{}
}

// Allocate returns a zeroed slice of size bytes starting at a 64-byte
// aligned address.
func (*GoAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	// Allocate size + Alignment so an aligned offset always exists.
	// The underlying array is kept alive by the returned slice.
	buf := make([]byte, size+Alignment)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	offset := (Alignment - (addr & (Alignment - 1))) & (Alignment - 1)

	return buf[offset : offset+uintptr(size)], nil
}

// Free implements Allocator. Heap memory is garbage collected, so this is
// always a no-op returning nil.
func (*GoAllocator) Free(_ []byte) error {
	return nil
}

// DefaultAllocator is the allocator used when none is configured explicitly.
var DefaultAllocator Allocator = NewGoAllocator()
