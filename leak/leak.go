package leak

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ErrUnknownPointer is returned by Free for a buffer the allocator never
// handed out or already freed.
var ErrUnknownPointer = errors.New("leak: unknown pointer")

// Upstream is the allocator the leak layer delegates to.
type Upstream interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte) error
}

// entry records one live allocation in the side table.
type entry struct {
	id     uint64
	size   int
	origin string
}

// Allocator wraps an upstream byte allocator and remembers every live
// allocation in a side table keyed by buffer address. Unmatched frees fail
// with ErrUnknownPointer, and anything still live at the end of a run can
// be dumped with ReportLeaks.
//
// Allocation ids are assigned in order, so the live and freed id sets
// compress to almost nothing in run-length bitmap containers even after
// millions of allocations.
//
// The allocator is safe for concurrent use; it is a diagnostic layer, not
// a hot path.
type Allocator struct {
	mu       sync.Mutex
	upstream Upstream
	entries  map[uintptr]entry
	live     *roaring64.Bitmap
	freed    *roaring64.Bitmap
	nextID   uint64

	captureOrigin bool
	originSkip    int
	blockOverhead int
}

// Option is a configuration option for the leak allocator.
type Option func(*Allocator)

// WithOriginCapture records the file:line of every Allocate call and
// includes it in leak reports. Off by default; capturing the caller costs
// a runtime.Caller lookup per allocation.
func WithOriginCapture() Option {
	return func(a *Allocator) {
		a.captureOrigin = true
	}
}

// WithOriginSkip widens the stack walk used for origin capture by extra
// frames. Wrappers that forward Allocate calls pass the number of frames
// they add, so reports attribute allocations to the wrapper's caller
// instead of the wrapper itself.
func WithOriginSkip(extra int) Option {
	return func(a *Allocator) {
		a.originSkip = extra
	}
}

// WithBlockOverhead records every allocation at size+n bytes. Upstreams
// that prepend per-allocation metadata pass their overhead here, so leak
// reports state what each allocation actually cost below instead of the
// requested payload size.
func WithBlockOverhead(n int) Option {
	return func(a *Allocator) {
		a.blockOverhead = n
	}
}

// New creates a leak-tracking allocator on top of upstream.
func New(upstream Upstream, opts ...Option) *Allocator {
	a := &Allocator{
		upstream: upstream,
		entries:  make(map[uintptr]entry),
		live:     roaring64.New(),
		freed:    roaring64.New(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Allocate delegates to the upstream and records the returned buffer.
// size <= 0 returns (nil, nil) unrecorded; upstream failures are returned
// unchanged.
func (a *Allocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	buf, err := a.upstream.Allocate(size)
	if err != nil {
		return nil, err
	}

	e := entry{size: size + a.blockOverhead}
	if a.captureOrigin {
		e.origin = callerOrigin(a.originSkip)
	}

	a.mu.Lock()
	a.nextID++
	e.id = a.nextID
	a.entries[bufKey(buf)] = e
	a.live.Add(e.id)
	a.mu.Unlock()

	return buf, nil
}

// Free forgets the buffer and delegates to the upstream. Freeing a buffer
// that is not live fails with ErrUnknownPointer before the upstream is
// touched, so double frees and foreign pointers surface here instead of
// corrupting the layer below.
func (a *Allocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	key := bufKey(buf)

	a.mu.Lock()
	e, ok := a.entries[key]
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: 0x%x (double free or foreign buffer)", ErrUnknownPointer, key)
	}

	if err := a.upstream.Free(buf); err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.entries, key)
	a.live.Remove(e.id)
	a.freed.Add(e.id)
	a.mu.Unlock()

	return nil
}

// Reset forgets every outstanding allocation without reporting it. Call it
// only after the upstream has reclaimed the memory in bulk, e.g. an arena
// purge. Forgotten allocations count neither as live nor as freed.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = make(map[uintptr]entry)
	a.live = roaring64.New()
}

// LiveAllocs returns the number of allocations not yet freed.
func (a *Allocator) LiveAllocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return int(a.live.GetCardinality()) //nolint:gosec // cardinality is bounded by nextID
}

// LiveBytes returns the bytes held by live allocations.
func (a *Allocator) LiveBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.liveBytesLocked()
}

func (a *Allocator) liveBytesLocked() int64 {
	var total int64
	for _, e := range a.entries {
		total += int64(e.size)
	}

	return total
}

// Stats returns lifetime counters for the allocator.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Stats{
		TotalAllocs: a.nextID,
		LiveAllocs:  a.live.GetCardinality(),
		FreedAllocs: a.freed.GetCardinality(),
		LiveBytes:   a.liveBytesLocked(),
	}
}

// ReportLeaks writes every live allocation to w in allocation order and
// reports whether any were found. A clean allocator writes nothing.
func (a *Allocator) ReportLeaks(w io.Writer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.live.IsEmpty() {
		return false
	}

	leaks := make([]entry, 0, len(a.entries))
	for _, e := range a.entries {
		leaks = append(leaks, e)
	}
	sort.Slice(leaks, func(i, j int) bool { return leaks[i].id < leaks[j].id })

	fmt.Fprintf(w, "leak: %d allocations, %d bytes still live\n", len(leaks), a.liveBytesLocked())
	for _, e := range leaks {
		if e.origin != "" {
			fmt.Fprintf(w, "  #%d: %d bytes allocated at %s\n", e.id, e.size, e.origin)
		} else {
			fmt.Fprintf(w, "  #%d: %d bytes\n", e.id, e.size)
		}
	}

	return true
}

// Stats holds lifetime counters for a leak allocator.
type Stats struct {
	TotalAllocs uint64
	LiveAllocs  uint64
	FreedAllocs uint64
	LiveBytes   int64
}

// String implements the fmt.Stringer interface.
func (s Stats) String() string {
	return fmt.Sprintf("Leak{total: %d, live: %d, freed: %d, liveBytes: %d}",
		s.TotalAllocs, s.LiveAllocs, s.FreedAllocs, s.LiveBytes)
}

func bufKey(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf))) //nolint:gosec // address identity only, never dereferenced
}

func callerOrigin(extra int) string {
	// Skip callerOrigin and Allocate; report the allocator's caller.
	_, file, line, ok := runtime.Caller(2 + extra)
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("%s:%d", file, line)
}
