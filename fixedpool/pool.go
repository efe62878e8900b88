package fixedpool

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/bits-and-blooms/bitset"
)

// Pool is a fixed-capacity object pool for values of type T.
//
// All slots are allocated up front in a single contiguous block. Alloc and
// Free are O(1): free slots form an intrusive LIFO list threaded through a
// parallel index array, so freeing a slot makes it the next one handed out.
// A fresh pool hands out slots from the highest index downward.
//
// Free validates that the pointer actually names a live slot of this pool.
// Double frees and pointers the pool does not own are reported as
// *InvalidPointerError rather than silently corrupting the free list.
//
// A Pool is not safe for concurrent use.
type Pool[T any] struct {
	slots    []T
	next     []int32
	inUse    *bitset.BitSet
	freeHead int32
	live     int
	elemSize uintptr
}

// New creates a pool with the given number of slots. The element type must
// have a non-zero size and capacity must be in [1, math.MaxInt32].
func New[T any](capacity int) (*Pool[T], error) {
	if capacity <= 0 || capacity > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	var zero T
	elemSize := unsafe.Sizeof(zero)
	if elemSize == 0 {
		return nil, ErrZeroSizedType
	}

	p := &Pool[T]{
		slots:    make([]T, capacity),
		next:     make([]int32, capacity),
		inUse:    bitset.New(uint(capacity)), //nolint:gosec // capacity is bounded above
		elemSize: elemSize,
	}
	p.Reset()

	return p, nil
}

// Alloc takes a free slot, resets it to the zero value and returns a pointer
// to it. It returns ErrExhausted when every slot is live.
//
// The returned pointer stays valid until it is passed to Free or the pool is
// Reset.
func (p *Pool[T]) Alloc() (*T, error) {
	if p.freeHead < 0 {
		return nil, ErrExhausted
	}

	idx := p.freeHead
	p.freeHead = p.next[idx]
	p.inUse.Set(uint(idx))
	p.live++

	slot := &p.slots[idx]
	var zero T
	*slot = zero

	return slot, nil
}

// AllocValue takes a free slot and initializes it with v.
func (p *Pool[T]) AllocValue(v T) (*T, error) {
	slot, err := p.Alloc()
	if err != nil {
		return nil, err
	}
	*slot = v

	return slot, nil
}

// Free returns the slot holding *ptr to the free list. The slot is cleared
// first so references held by the dead value do not pin other objects.
//
// Freeing a pointer the pool does not own, or a slot that is already free,
// returns an *InvalidPointerError wrapping ErrNotInPool or ErrSlotNotLive.
// The pool state is unchanged in that case.
func (p *Pool[T]) Free(ptr *T) error {
	idx, err := p.slotIndex(ptr)
	if err != nil {
		return err
	}
	if !p.inUse.Test(uint(idx)) { //nolint:gosec // idx is in [0, capacity)
		return &InvalidPointerError{
			Addr:   uintptr(unsafe.Pointer(ptr)),
			Reason: "slot is not live (double free?)",
			err:    ErrSlotNotLive,
		}
	}

	var zero T
	p.slots[idx] = zero
	p.inUse.Clear(uint(idx)) //nolint:gosec // idx is in [0, capacity)

	p.next[idx] = p.freeHead
	p.freeHead = int32(idx) //nolint:gosec // idx is in [0, capacity), capacity <= MaxInt32
	p.live--

	return nil
}

// Reset rebuilds the free list so every slot is available again, with slots
// handed out from the highest index downward.
//
// Reset does not clear live slots and must only be called when no live
// pointers remain: either a fresh pool, or after every Alloc was matched by
// a Free. Pointers obtained before Reset are invalid afterwards; freeing
// one fails with ErrSlotNotLive.
func (p *Pool[T]) Reset() {
	p.freeHead = -1
	for i := range p.next {
		p.next[i] = p.freeHead
		p.freeHead = int32(i) //nolint:gosec // i < capacity <= MaxInt32
	}
	p.inUse.ClearAll()
	p.live = 0
}

// Cap returns the total number of slots.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}

// LiveCount returns the number of slots currently handed out.
func (p *Pool[T]) LiveCount() int {
	return p.live
}

// FreeCount returns the number of slots available for Alloc.
func (p *Pool[T]) FreeCount() int {
	return len(p.slots) - p.live
}

// Stats returns a point-in-time snapshot of the pool occupancy.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Capacity: len(p.slots),
		Live:     p.live,
		Free:     len(p.slots) - p.live,
	}
}

// slotIndex maps ptr back to its slot index, validating that the address
// lies inside the slot block and on an element boundary.
func (p *Pool[T]) slotIndex(ptr *T) (int, error) {
	if ptr == nil {
		return 0, &InvalidPointerError{Reason: "nil pointer", err: ErrNotInPool}
	}

	base := uintptr(unsafe.Pointer(&p.slots[0]))
	addr := uintptr(unsafe.Pointer(ptr))
	if addr < base {
		return 0, &InvalidPointerError{Addr: addr, Reason: "address below pool storage", err: ErrNotInPool}
	}

	offset := addr - base
	if offset%p.elemSize != 0 {
		return 0, &InvalidPointerError{Addr: addr, Reason: "address not on a slot boundary", err: ErrNotInPool}
	}

	idx := int(offset / p.elemSize)
	if idx >= len(p.slots) {
		return 0, &InvalidPointerError{Addr: addr, Reason: "address beyond pool storage", err: ErrNotInPool}
	}

	return idx, nil
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Capacity int
	Live     int
	Free     int
}

// String implements the fmt.Stringer interface.
func (s Stats) String() string {
	return fmt.Sprintf("Pool{capacity: %d, live: %d, free: %d}", s.Capacity, s.Live, s.Free)
}
