// Package fixedpool provides a fixed-capacity object pool with O(1)
// allocation and deallocation.
//
// All slots live in one contiguous block allocated up front, so the pool
// never grows and never touches the allocator after construction. Free
// slots form an intrusive LIFO list: the most recently freed slot is the
// next one handed out, which keeps hot objects cache-resident.
//
// Unlike sync.Pool, a Pool has a hard capacity, never drops entries and
// reports misuse: freeing a foreign pointer or freeing a slot twice returns
// an *InvalidPointerError instead of corrupting the free list.
//
// # Usage
//
//	pool, err := fixedpool.New[Particle](1024)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p, err := pool.AllocValue(Particle{X: 1, Y: 2})
//	if err != nil {
//		// pool exhausted
//	}
//	defer pool.Free(p)
//
// # Ownership Handles
//
// For callers that prefer scoped ownership over manual Free calls, the pool
// can hand out owning handles:
//
//   - Unique: single owner, slot freed on Close
//   - Shared: counted owners via Clone, slot freed when the last one closes
//
// # Thread Safety
//
// Pool and its handles are not safe for concurrent use. Wrap the pool in
// external locking if multiple goroutines must share it.
package fixedpool
