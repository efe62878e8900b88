package testutil

import (
	"math/rand"
	"sync"
)

// Resource is a reference-counted object for handle and pool tests. It
// starts with one reference. Release drops a reference and records
// destruction when the count reaches zero; further AddRef or Release calls
// after destruction keep counting so tests can detect use-after-destroy.
type Resource struct {
	ID       int
	refs     int
	adds     int
	releases int
	destroys int
}

// NewResource creates a resource holding one reference.
func NewResource(id int) *Resource {
	return &Resource{ID: id, refs: 1}
}

// AddRef acquires one reference.
func (r *Resource) AddRef() {
	r.refs++
	r.adds++
}

// Release drops one reference and destroys the resource when the count
// reaches zero.
func (r *Resource) Release() {
	r.refs--
	r.releases++

	if r.refs == 0 {
		r.destroys++
	}
}

// Refs returns the current reference count.
func (r *Resource) Refs() int {
	return r.refs
}

// Adds returns the number of AddRef calls observed.
func (r *Resource) Adds() int {
	return r.adds
}

// Releases returns the number of Release calls observed.
func (r *Resource) Releases() int {
	return r.releases
}

// Destroyed reports whether the reference count ever reached zero.
func (r *Resource) Destroyed() bool {
	return r.destroys > 0
}

// HeapAllocator is a make-backed byte allocator for tests that need a
// working upstream without pulling in the root package.
type HeapAllocator struct{}

// Allocate returns a fresh zeroed slice of the given size. Non-positive
// sizes return (nil, nil).
func (HeapAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	return make([]byte, size), nil
}

// Free is a no-op; the garbage collector reclaims the slice.
func (HeapAllocator) Free(_ []byte) error {
	return nil
}

// FailingAllocator is a byte allocator that fails on demand, for exercising
// error propagation through allocator decorators.
//
// Allocate succeeds Successes times, then returns AllocErr (nil AllocErr
// means it never fails). Free returns FreeErr on every call when set.
type FailingAllocator struct {
	AllocErr  error
	FreeErr   error
	Successes int

	allocCalls int
	freeCalls  int
}

// Allocate returns a zeroed slice until the configured failure point.
func (f *FailingAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	f.allocCalls++
	if f.AllocErr != nil && f.allocCalls > f.Successes {
		return nil, f.AllocErr
	}

	return make([]byte, size), nil
}

// Free returns FreeErr when set, nil otherwise.
func (f *FailingAllocator) Free(_ []byte) error {
	f.freeCalls++

	return f.FreeErr
}

// AllocCalls returns the number of Allocate calls with a positive size.
func (f *FailingAllocator) AllocCalls() int {
	return f.allocCalls
}

// FreeCalls returns the number of Free calls.
func (f *FailingAllocator) FreeCalls() int {
	return f.freeCalls
}

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic randomness for tests
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rand.Intn(n)
}

// Sizes returns n allocation sizes in [1, maxSize], for stress tests that
// mix small and large requests.
func (r *RNG) Sizes(n, maxSize int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = 1 + r.rand.Intn(maxSize)
	}

	return sizes
}
