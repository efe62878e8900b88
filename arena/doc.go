// Package arena provides a chunked bump allocator backed by anonymous
// memory mappings.
//
// An arena trades per-allocation freeing for speed: allocations are a
// lock-free compare-and-swap on the current chunk's offset, and memory
// comes back only in bulk. Chunks live outside the Go heap, so arena data
// adds nothing to garbage collection scan time. That makes arenas a fit
// for build-then-drop workloads: decode buffers, staging areas, large
// graphs assembled once and thrown away together.
//
// # Concurrency Model
//
// Allocations (Alloc, AllocBytes, the typed slice helpers) are safe for
// concurrent use. Reset, Purge and Close are not; they must be serialized
// against allocations by the caller. Long-running readers can hold the
// arena open with IncRef/DecRef so teardown waits for them.
//
// # References
//
// Alloc returns a global offset alongside the byte slice. Offsets are
// stable for the arena's lifetime and resolve through Get without pinning
// any Go pointer into the off-heap memory. Generation-stamped Refs detect
// use after Reset, Purge or Close:
//
//	off, buf, _ := a.Alloc(64)
//	ref := a.Ref(off)
//	...
//	if p := a.GetSafe(ref); p != nil {
//		// still valid
//	}
//
// # Reclaiming Memory
//
//   - Reset: drop all allocations, keep the first chunk hot for refilling
//   - Purge: drop all allocations and hand the pages back to the OS,
//     optionally paced by a rate limiter
//   - Close: unmap everything, arena is done
package arena
