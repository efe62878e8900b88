package fixedpool

// Unique is a single-owner handle for a pool slot. Closing the handle frees
// the slot; the zero value is an empty handle and Close on it is a no-op.
//
// Unique must not be copied: both copies would free the same slot.
type Unique[T any] struct {
	ptr  *T
	pool *Pool[T]
}

// AllocUnique takes a free slot and wraps it in a Unique handle.
func (p *Pool[T]) AllocUnique() (*Unique[T], error) {
	ptr, err := p.Alloc()
	if err != nil {
		return nil, err
	}

	return &Unique[T]{ptr: ptr, pool: p}, nil
}

// AllocUniqueValue takes a free slot, initializes it with v and wraps it in
// a Unique handle.
func (p *Pool[T]) AllocUniqueValue(v T) (*Unique[T], error) {
	ptr, err := p.AllocValue(v)
	if err != nil {
		return nil, err
	}

	return &Unique[T]{ptr: ptr, pool: p}, nil
}

// Get returns the owned pointer, or nil for an empty handle.
func (u *Unique[T]) Get() *T {
	if u == nil {
		return nil
	}

	return u.ptr
}

// Release detaches the slot from the handle without freeing it. The caller
// becomes responsible for passing the pointer to Pool.Free.
func (u *Unique[T]) Release() *T {
	ptr := u.ptr
	u.ptr = nil
	u.pool = nil

	return ptr
}

// Close frees the owned slot. It is idempotent: closing an empty handle is
// a no-op.
func (u *Unique[T]) Close() error {
	if u == nil || u.ptr == nil {
		return nil
	}

	err := u.pool.Free(u.ptr)
	u.ptr = nil
	u.pool = nil

	return err
}

// sharedState is the control block behind a group of Shared handles.
type sharedState[T any] struct {
	ptr  *T
	pool *Pool[T]
	refs int
}

// Shared is a reference-counted handle for a pool slot. Clone creates
// another owner; the slot is freed when the last owner is closed. Like the
// pool itself, Shared is single-goroutine: the count is a plain int in a
// control block, not an atomic.
//
// The zero value is an empty handle.
type Shared[T any] struct {
	state *sharedState[T]
}

// AllocShared takes a free slot and wraps it in a Shared handle with an
// owner count of one.
func (p *Pool[T]) AllocShared() (Shared[T], error) {
	ptr, err := p.Alloc()
	if err != nil {
		return Shared[T]{}, err
	}

	return Shared[T]{state: &sharedState[T]{ptr: ptr, pool: p, refs: 1}}, nil
}

// AllocSharedValue takes a free slot, initializes it with v and wraps it in
// a Shared handle with an owner count of one.
func (p *Pool[T]) AllocSharedValue(v T) (Shared[T], error) {
	ptr, err := p.AllocValue(v)
	if err != nil {
		return Shared[T]{}, err
	}

	return Shared[T]{state: &sharedState[T]{ptr: ptr, pool: p, refs: 1}}, nil
}

// Get returns the shared pointer, or nil for an empty handle.
func (s Shared[T]) Get() *T {
	if s.state == nil {
		return nil
	}

	return s.state.ptr
}

// Clone returns a new handle owning the same slot and increments the owner
// count. Cloning an empty handle returns an empty handle.
func (s Shared[T]) Clone() Shared[T] {
	if s.state != nil {
		s.state.refs++
	}

	return s
}

// RefCount returns the number of handles owning the slot, or zero for an
// empty handle.
func (s Shared[T]) RefCount() int {
	if s.state == nil {
		return 0
	}

	return s.state.refs
}

// Close drops this handle's ownership and empties it. The slot is freed
// when the last owner closes. Closing an empty handle is a no-op.
func (s *Shared[T]) Close() error {
	st := s.state
	s.state = nil

	if st == nil {
		return nil
	}

	st.refs--
	if st.refs > 0 {
		return nil
	}

	err := st.pool.Free(st.ptr)
	st.ptr = nil

	return err
}
