// Package mmap provides anonymous memory mappings for off-heap allocation.
//
// # Overview
//
// MapAnon() creates private, zero-filled, read-write mappings that live
// outside the Go heap. The Arena allocator uses them for its chunks, keeping
// large allocations invisible to the garbage collector.
//
// # Usage
//
//	m, err := mmap.MapAnon(1 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	// Direct access to the mapped memory
//	data := m.Bytes()
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessRandom)
//
//	// Tell the kernel a region is reclaimable
//	m.AdviseRange(off, n, mmap.AccessDontNeed)
//
// # Platform Support
//
// The package provides a unified API across platforms:
//
//   - Unix (Linux, macOS, BSD): Uses mmap(2) with madvise(2) for access hints
//   - Windows: Uses VirtualAlloc/VirtualFree (madvise is a no-op)
//
// # Thread Safety
//
// Mapping is safe for concurrent read access. The Close() method is
// idempotent and protected by atomic operations. However, callers must
// ensure no goroutines access Bytes() after Close() returns.
package mmap
