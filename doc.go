// Package memgo provides composable memory-management building blocks for Go.
//
// Memgo layers explicit allocation concerns the way middleware wraps a
// handler: a base allocator (Go heap or off-heap arena) is wrapped by an
// optional memory budget, size tracking, and an optional leak checker. The
// composed chain is a Stack, assembled through fluent builders.
//
// # Quick Start
//
// Heap-backed stack:
//
//	stack, _ := memgo.Heap().
//	    MemoryLimit(64 << 20).
//	    LeakCheck().
//	    Build()
//	defer stack.Close()
//
//	buf, _ := stack.Allocate(4096)
//	// ... use buf ...
//	_ = stack.Free(buf)
//
// Arena-backed stack (off-heap, bulk reclamation):
//
//	stack, _ := memgo.Arena(1 << 20).
//	    MemoryLimit(256 << 20).
//	    ReleasePacing(64 << 20).
//	    Build()
//	defer stack.Close()
//
// Typed slices through the full chain:
//
//	floats, _ := memgo.AllocSlice[float64](stack, 1024)
//	// ... use floats ...
//	_ = memgo.FreeSlice(stack, floats)
//
// # Layers
//
// Each layer is usable on its own and composes through a two-method
// allocator contract (Allocate/Free over byte slices):
//
//   - arena: lock-free bump allocator over anonymous memory mappings
//   - resource: memory budget with fail-fast acquisition and release pacing
//   - tracking: per-allocation size headers, live counts and byte totals
//   - leak: live-allocation side table, double-free detection, leak reports
//   - fixedpool: fixed-capacity typed slot pool with LIFO reuse
//   - refcount: intrusive reference-counted handles with deterministic release
//
// # Accounting Model
//
// Tracking counts what was handed to the upstream allocator: every buffer is
// preceded by an 8 byte header storing the full block size, and the live
// counters include those headers. Allocating 8 bytes therefore adds 16 to
// TotalBytes, and freeing it removes 16.
//
// # Leak Checking
//
// With LeakCheck enabled, Close runs a leak report. Live allocations turn
// into a LeakError carrying the rendered report:
//
//	stack := memgo.Heap().LeakCheck().MustBuild()
//	buf, _ := stack.Allocate(64)
//	_ = buf // never freed
//
//	err := stack.Close()
//	// errors.Is(err, memgo.ErrLeaksDetected) == true
//
// # Key Features
//
//   - Fluent builders for heap- and arena-backed stacks
//   - Off-heap arena memory the garbage collector never scans
//   - Fail-fast memory budgets with paced release back to the OS
//   - Live allocation and byte accounting with 8 byte headers
//   - Leak reports with optional allocation-site capture
//   - Typed slot pools and reference-counted handles for value lifetimes
package memgo
