package refcount

// Counted is the contract a resource must satisfy to be managed by a
// Handle: it carries its own reference count and exposes increment and
// decrement operations. The type must be comparable so handles can check
// identity and detect the zero (null) state; in practice T is a pointer
// type.
//
// AddRef and Release have no return values. What happens when the count
// reaches zero is the resource's business; the handle never looks at the
// count itself.
type Counted interface {
	comparable
	AddRef()
	Release()
}

// Handle manages one reference to an externally counted resource. It holds
// exactly one field of the resource type, so a Handle[*R] is the same size
// as a bare *R and method calls dispatch statically.
//
// The zero value is a null handle.
//
// Handles must be closed explicitly: the garbage collector reclaims the
// handle value itself but never calls Release, so an unclosed handle leaks
// a reference. Clone and Assign acquire references, Close and assignment of
// a null handle drop them, Move and Detach transfer them without touching
// the count.
//
// A Handle performs no synchronization of its own. It is as safe as the
// resource's AddRef and Release make it.
type Handle[T Counted] struct {
	res T
}

// Wrap binds a handle to res without acquiring a reference: the caller's
// reference transfers to the handle. This matches the convention that
// factories return resources with an initial count of one.
func Wrap[T Counted](res T) Handle[T] {
	return Handle[T]{res: res}
}

// Retain binds a handle to res and acquires its own reference. Use it to
// share a resource another owner keeps using; a zero res yields a null
// handle without count traffic.
func Retain[T Counted](res T) Handle[T] {
	var zero T
	if res != zero {
		res.AddRef()
	}

	return Handle[T]{res: res}
}

// Get returns the bound resource, or the zero value for a null handle. The
// reference stays owned by the handle.
func (h Handle[T]) Get() T {
	return h.res
}

// IsNil reports whether the handle is null.
func (h Handle[T]) IsNil() bool {
	var zero T

	return h.res == zero
}

// Equal reports whether both handles reference the same resource. Two null
// handles are equal.
func (h Handle[T]) Equal(other Handle[T]) bool {
	return h.res == other.res
}

// Clone returns a new handle owning its own reference to the same
// resource. Cloning a null handle returns a null handle without count
// traffic.
func (h Handle[T]) Clone() Handle[T] {
	var zero T
	if h.res != zero {
		h.res.AddRef()
	}

	return h
}

// Assign rebinds the handle to other's resource, acquiring a reference to
// it and dropping the reference to the previously bound resource.
//
// The new reference is acquired before the old one is dropped, so
// assigning a handle bound to the same resource is safe even when the
// handle holds the last reference. Assigning a null handle is equivalent
// to Close.
func (h *Handle[T]) Assign(other Handle[T]) {
	var zero T

	if other.res != zero {
		other.res.AddRef()
	}
	if h.res != zero {
		h.res.Release()
	}

	h.res = other.res
}

// Move transfers the reference to a new handle and nulls the receiver. The
// resource's count is not touched.
func (h *Handle[T]) Move() Handle[T] {
	var zero T

	moved := Handle[T]{res: h.res}
	h.res = zero

	return moved
}

// Detach releases ownership of the reference without dropping it and nulls
// the handle. The caller becomes responsible for the resource's count.
func (h *Handle[T]) Detach() T {
	var zero T

	res := h.res
	h.res = zero

	return res
}

// Out exposes the wrapped field for factory APIs that fill in a resource
// directly:
//
//	var h refcount.Handle[*Texture]
//	out, _ := h.Out()
//	if err := device.CreateTexture(desc, out); err != nil {
//		// h is still null
//	}
//
// The written resource is adopted without an AddRef, exactly like Wrap. Out
// fails with ErrAlreadyBound on a bound handle: overwriting the held
// reference would leak it.
func (h *Handle[T]) Out() (*T, error) {
	if !h.IsNil() {
		return nil, ErrAlreadyBound
	}

	return &h.res, nil
}

// Close drops the held reference and nulls the handle. It is idempotent:
// closing a null handle is a no-op. The returned error is always nil;
// Close has the signature of io.Closer so handles fit cleanup helpers.
func (h *Handle[T]) Close() error {
	var zero T

	if h.res != zero {
		h.res.Release()
		h.res = zero
	}

	return nil
}
