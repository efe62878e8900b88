package resource

import (
	"errors"
	"fmt"
)

// ErrMemoryLimitExceeded is returned by LimitedAllocator when an allocation
// would push usage past the controller's hard limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Upstream is the allocator a LimitedAllocator delegates to.
type Upstream interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte) error
}

// LimitedAllocator charges every allocation against a controller's memory
// budget before delegating upstream. Exceeding the budget fails fast with
// ErrMemoryLimitExceeded rather than blocking: whether to wait, spill or
// abort is the caller's policy.
type LimitedAllocator struct {
	upstream Upstream
	ctrl     *Controller
}

// NewLimitedAllocator wraps upstream with ctrl's budget. A nil ctrl
// enforces nothing.
func NewLimitedAllocator(upstream Upstream, ctrl *Controller) *LimitedAllocator {
	return &LimitedAllocator{
		upstream: upstream,
		ctrl:     ctrl,
	}
}

// Allocate reserves size bytes of budget, then delegates. The reservation
// is returned on upstream failure. size <= 0 returns (nil, nil).
func (l *LimitedAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	if !l.ctrl.TryAcquireMemory(int64(size)) {
		return nil, fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrMemoryLimitExceeded, size, l.ctrl.MemoryUsage(), l.ctrl.MemoryLimit())
	}

	buf, err := l.upstream.Allocate(size)
	if err != nil {
		l.ctrl.ReleaseMemory(int64(size))
		return nil, err
	}

	return buf, nil
}

// Free delegates upstream, then returns the budget. On upstream failure
// the budget stays charged, matching the allocation still being live.
func (l *LimitedAllocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	if err := l.upstream.Free(buf); err != nil {
		return err
	}

	l.ctrl.ReleaseMemory(int64(len(buf)))

	return nil
}

// Usage returns the bytes currently charged against the budget.
func (l *LimitedAllocator) Usage() int64 {
	return l.ctrl.MemoryUsage()
}
