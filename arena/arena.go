package arena

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hupe1980/memgo/internal/conv"
	"github.com/hupe1980/memgo/internal/mmap"
)

// MemoryAcquirer grants and returns memory budget. The arena asks it before
// mapping a chunk and tells it when chunks are released, which lets an
// external controller cap the arena's footprint.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when the arena would exceed the
	// maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrAllocationFailed wraps failures to map a new chunk.
	ErrAllocationFailed = errors.New("arena: allocation failed")
	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("arena: closed")
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1024 * 1024
	// DefaultAlignment is the default memory alignment (8 bytes).
	DefaultAlignment = 8
	// MaxChunks limits the number of chunks. With 1MB chunks this caps the
	// addressable space at 64GB.
	MaxChunks = 65536
)

// Stats tracks arena memory usage metrics.
//
// Note on semantics:
//   - BytesReserved: total memory currently mapped from the OS
//   - BytesUsed: actual bytes requested by allocations (before alignment)
//   - BytesWasted: padding added for alignment
//   - ActiveChunks: number of chunks currently held
//   - TotalAllocs: cumulative allocation count
type Stats struct {
	ChunksAllocated uint64 // Historical: total chunks ever created
	BytesReserved   uint64 // Current: total memory mapped
	BytesUsed       uint64 // Current: actual bytes used
	BytesWasted     uint64 // Current: alignment padding
	ActiveChunks    uint64 // Current: active chunk count
	TotalAllocs     uint64 // Historical: total allocations
}

// Ref is a safe reference to an arena allocation. It carries the arena
// generation so stale references from before a Reset or Purge are detected
// instead of dereferenced.
type Ref struct {
	Gen    uint32
	Offset uint64
}

type atomicStats struct {
	ChunksAllocated atomic.Uint64
	BytesReserved   atomic.Uint64
	BytesUsed       atomic.Uint64
	BytesWasted     atomic.Uint64
	ActiveChunks    atomic.Uint64
	TotalAllocs     atomic.Uint64
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping // Holds the off-heap mapping
	offset  atomic.Int64  // MUST be atomic - accessed concurrently without locks
	index   uint32        // Index of this chunk in the arena
}

// Arena is a bump allocator backed by anonymous memory mappings. Individual
// allocations cannot be freed; memory is reclaimed in bulk by Reset, Purge
// or Close.
//
// Allocations are lock-free and safe for concurrent use. Reset, Purge and
// Close must not run concurrently with allocations.
type Arena struct {
	chunkSize  int
	chunkBits  int    // Power of 2 exponent for chunk size
	chunkMask  uint64 // Mask for offset within chunk
	alignment  int
	chunks     [MaxChunks]atomic.Pointer[chunk] // Fixed-size array to avoid slice race conditions
	chunkCount atomic.Uint32
	current    atomic.Pointer[chunk]
	mu         sync.Mutex
	stats      atomicStats
	refs       atomic.Int64  // Reference count for safety
	generation atomic.Uint32 // Generation counter to detect stale offsets
	acquirer   MemoryAcquirer
	limiter    releaseLimiter
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates a new Arena with the given chunk size. A non-positive chunk
// size selects DefaultChunkSize; other sizes are rounded up to the next
// power of two, with a minimum of 64 bytes.
func New(chunkSize int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	// A chunk must at least hold the null reservation plus one aligned
	// allocation; anything smaller than a cache line is useless anyway.
	if chunkSize < 64 {
		chunkSize = 64
	}

	// Round up to the next power of 2 for efficient bitwise operations.
	// If chunkSize is already a power of 2, bits.Len(chunkSize-1) keeps it:
	// 1024 -> 1023 -> Len=10 -> 1<<10 = 1024.
	chunkBits := bits.Len(uint(chunkSize - 1)) //nolint:gosec // chunkSize > 0

	chunkSize = 1 << chunkBits
	chunkMask, err := conv.IntToUint64(chunkSize - 1)
	if err != nil {
		return nil, err
	}

	a := &Arena{
		chunkSize: chunkSize,
		chunkBits: chunkBits,
		chunkMask: chunkMask,
		alignment: DefaultAlignment,
	}

	for _, opt := range opts {
		opt(a)
	}

	// Initialize generation to 1 so 0 is invalid
	a.generation.Store(1)

	if err := a.allocateChunk(context.Background()); err != nil {
		return nil, err
	}
	// Reserve offset 0 as the null reference
	if _, _, err := a.Alloc(1); err != nil {
		return nil, err
	}

	return a, nil
}

// IncRef increments the reference count. Call this when starting a
// long-running operation that reads arena memory; teardown waits for the
// count to drop.
func (a *Arena) IncRef() {
	a.refs.Add(1)
}

// DecRef decrements the reference count.
func (a *Arena) DecRef() {
	a.refs.Add(-1)
}

// Generation returns the current generation of the arena.
func (a *Arena) Generation() uint32 {
	return a.generation.Load()
}

// Ref builds a generation-stamped reference for an offset returned by
// Alloc. Resolve it later with GetSafe.
func (a *Arena) Ref(offset uint64) Ref {
	return Ref{Gen: a.generation.Load(), Offset: offset}
}

// GetSafe returns a pointer to the data at the given reference. It
// validates the generation and returns nil if the reference is stale.
func (a *Arena) GetSafe(ref Ref) unsafe.Pointer {
	if ref.Gen != a.generation.Load() {
		return nil
	}

	return a.Get(ref.Offset)
}

func (a *Arena) allocateChunk(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocateChunkLocked(ctx)
}

func (a *Arena) allocateChunkLocked(ctx context.Context) error {
	idx := a.chunkCount.Load()
	if idx >= MaxChunks {
		return ErrMaxChunksExceeded
	}

	// Ask the budget controller first so a capped arena fails before the
	// mapping exists.
	if a.acquirer != nil {
		chunkSize64 := int64(a.chunkSize)

		var cancel context.CancelFunc
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
		}
		if err := a.acquirer.AcquireMemory(ctx, chunkSize64); err != nil {
			return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
	}

	// Off-heap anonymous mapping: the GC never scans or moves arena chunks.
	mapping, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(a.chunkSize))
		}

		return fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}

	newChunk := &chunk{
		data:    mapping.Bytes(),
		mapping: mapping,
		index:   idx,
	}

	// Store via atomic pointer: the lock serializes chunk creation, but
	// Get() reads the array lock-free.
	a.chunks[idx].Store(newChunk)

	a.stats.ChunksAllocated.Add(1)
	chunkSizeU64, _ := conv.IntToUint64(a.chunkSize)
	a.stats.BytesReserved.Add(chunkSizeU64)
	a.stats.ActiveChunks.Add(1)

	// Count must be visible BEFORE current so Get() accepts offsets from
	// the new chunk as soon as Alloc returns them.
	a.chunkCount.Add(1)

	a.current.Store(newChunk)

	return nil
}

// Alloc allocates memory and returns the global offset and the byte slice.
// The global offset can be used with Get() to retrieve the pointer later.
// Requests larger than the chunk size fail with ErrAllocationFailed.
func (a *Arena) Alloc(size int) (uint64, []byte, error) {
	return a.AllocContext(context.Background(), size)
}

// AllocContext allocates memory with a context. The context bounds the
// budget acquisition when a new chunk is needed.
func (a *Arena) AllocContext(ctx context.Context, size int) (uint64, []byte, error) {
	return a.alloc(ctx, size, a.alignment)
}

func (a *Arena) alloc(ctx context.Context, size int, align int) (uint64, []byte, error) {
	if size <= 0 {
		return 0, nil, nil
	}

	mask := align - 1
	alignedSize := (size + mask) & ^mask

	// A request no chunk can hold would otherwise grow the arena forever.
	if alignedSize > a.chunkSize {
		return 0, nil, fmt.Errorf("%w: %d bytes exceeds chunk size %d", ErrAllocationFailed, size, a.chunkSize)
	}

	for {
		curr := a.current.Load()
		if curr == nil {
			return 0, nil, ErrClosed
		}

		offset, data, ok, err := a.tryAllocInChunk(curr, size, alignedSize, align)
		if err != nil {
			return 0, nil, err
		}
		if ok {
			return offset, data, nil
		}

		// Current chunk is full. Only one goroutine may grow the arena,
		// but allocation must stay lock-free for everyone else, so check
		// whether another goroutine already swapped in a fresh chunk.
		if a.current.Load() != curr {
			continue
		}

		a.mu.Lock()
		// Double check under lock
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}

		if err := a.allocateChunkLocked(ctx); err != nil {
			a.mu.Unlock()
			return 0, nil, err
		}
		a.mu.Unlock()
	}
}

func (a *Arena) tryAllocInChunk(curr *chunk, size, alignedSize, align int) (uint64, []byte, bool, error) {
	mask := int64(align - 1)

	oldOffset := curr.offset.Load()
	// Align the claim start as well: a caller with a stricter alignment
	// than the previous allocation would otherwise get a misaligned
	// pointer. For uniform alignment the bump offset is aligned already
	// and start == oldOffset.
	start := (oldOffset + mask) &^ mask
	newOffset := start + int64(alignedSize)

	if newOffset > int64(len(curr.data)) {
		return 0, nil, false, nil
	}

	if !curr.offset.CompareAndSwap(oldOffset, newOffset) {
		return 0, nil, false, nil
	}

	sizeU64, _ := conv.IntToUint64(size)
	a.stats.BytesUsed.Add(sizeU64)
	wastedU64, _ := conv.Int64ToUint64(newOffset - oldOffset - int64(size))
	a.stats.BytesWasted.Add(wastedU64)
	a.stats.TotalAllocs.Add(1)

	// GlobalOffset = (ChunkIndex << ChunkBits) | ChunkOffset
	startU64, err := conv.Int64ToUint64(start)
	if err != nil {
		return 0, nil, false, err
	}
	if startU64 > a.chunkMask {
		return 0, nil, false, fmt.Errorf("arena: offset exceeds chunk mask")
	}
	globalOffset := (uint64(curr.index) << a.chunkBits) | startU64

	return globalOffset, curr.data[start:newOffset:newOffset], true, nil
}

// Get returns an unsafe.Pointer to the memory at the given global offset.
// Offsets must come from Alloc on this arena; Get panics on offsets that
// point past the mapped chunks, and a garbage offset inside the mapped
// range resolves to garbage memory.
func (a *Arena) Get(offset uint64) unsafe.Pointer {
	chunkIdx := offset >> a.chunkBits
	chunkOffset := offset & a.chunkMask

	if chunkIdx >= uint64(a.chunkCount.Load()) {
		panic("arena: stale offset")
	}

	// Chunks are append-only and the array is fixed-size, so a lock-free
	// atomic load is enough here.
	c := a.chunks[chunkIdx].Load()
	if c == nil {
		panic("arena: chunk is nil")
	}

	return unsafe.Add(unsafe.Pointer(&c.data[0]), chunkOffset) //nolint:gosec // unsafe is required for arena implementation
}

// AllocPointer allocates memory for a struct of the given size and
// alignment and returns a pointer to it. align must be a power of two; a
// non-positive align selects the arena default.
func (a *Arena) AllocPointer(size, align int) (unsafe.Pointer, error) {
	if align <= 0 {
		align = a.alignment
	}

	_, bytes, err := a.alloc(context.Background(), size, align)
	if err != nil {
		return nil, err
	}

	return unsafe.Pointer(&bytes[0]), nil //nolint:gosec // unsafe is required for arena implementation
}

// AllocBytes allocates a byte slice of exactly the given size.
func (a *Arena) AllocBytes(size int) ([]byte, error) {
	_, bytes, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	if bytes == nil {
		return nil, nil
	}

	// The arena hands out alignment-padded slices; trim to the request.
	return bytes[:size:size], nil
}

// AllocUint32Slice allocates a zero-length uint32 slice with the given
// capacity, ready for append-style filling.
func (a *Arena) AllocUint32Slice(capacity int) ([]uint32, error) {
	if capacity <= 0 {
		return nil, nil
	}

	size := capacity * int(unsafe.Sizeof(uint32(0)))
	_, bytes, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*uint32)(unsafe.Pointer(&bytes[0])), capacity)[:0:capacity], nil //nolint:gosec // unsafe is required for arena implementation
}

// AllocUint64Slice allocates a zero-length uint64 slice with the given
// capacity, ready for append-style filling.
func (a *Arena) AllocUint64Slice(capacity int) ([]uint64, error) {
	if capacity <= 0 {
		return nil, nil
	}

	size := capacity * int(unsafe.Sizeof(uint64(0)))
	_, bytes, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*uint64)(unsafe.Pointer(&bytes[0])), capacity)[:0:capacity], nil //nolint:gosec // unsafe is required for arena implementation
}

// AllocFloat32Slice allocates a zero-length float32 slice with the given
// capacity, ready for append-style filling.
func (a *Arena) AllocFloat32Slice(capacity int) ([]float32, error) {
	if capacity <= 0 {
		return nil, nil
	}

	size := capacity * int(unsafe.Sizeof(float32(0)))
	_, bytes, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*float32)(unsafe.Pointer(&bytes[0])), capacity)[:0:capacity], nil //nolint:gosec // unsafe is required for arena implementation
}

// Allocate allocates size bytes. Together with Free it satisfies the
// byte-allocator contract used by the tracking and leak decorators, so an
// arena can sit at the bottom of an allocator chain. Use Alloc instead
// when the offset form is needed.
func (a *Arena) Allocate(size int) ([]byte, error) {
	return a.AllocBytes(size)
}

// Free is a no-op: arena memory is reclaimed in bulk by Reset, Purge or
// Close, never per allocation.
func (a *Arena) Free(_ []byte) error {
	return nil
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		ChunksAllocated: a.stats.ChunksAllocated.Load(),
		BytesReserved:   a.stats.BytesReserved.Load(),
		BytesUsed:       a.stats.BytesUsed.Load(),
		BytesWasted:     a.stats.BytesWasted.Load(),
		ActiveChunks:    a.stats.ActiveChunks.Load(),
		TotalAllocs:     a.stats.TotalAllocs.Load(),
	}
}

// Close unmaps all arena memory and permanently closes the arena.
//
// IMPORTANT:
//  1. Do NOT call Close concurrently with allocations
//  2. All slices and offsets from this arena become invalid
//  3. A closed arena cannot be reused; create a new one instead
//
// Close is idempotent. It returns the first unmap error but keeps going,
// so every chunk gets released either way.
func (a *Arena) Close() error {
	// Wait for in-flight readers to finish
	for a.refs.Load() > 0 {
		runtime.Gosched()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.acquirer != nil {
		bytesReserved := a.stats.BytesReserved.Load()
		if bytesReserved > 0 {
			a.acquirer.ReleaseMemory(int64(bytesReserved)) //nolint:gosec // reserved bytes fit in int64
		}
	}

	// Invalidate outstanding references
	a.generation.Add(1)

	var firstErr error

	count := a.chunkCount.Load()
	countInt, _ := conv.Uint32ToInt(count) // Safe: count <= MaxChunks
	for i := 0; i < countInt; i++ {
		chunk := a.chunks[i].Load()
		if chunk != nil && chunk.mapping != nil {
			if err := chunk.mapping.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		a.chunks[i].Store(nil)
	}
	a.chunkCount.Store(0)
	a.current.Store(nil)

	a.stats.ActiveChunks.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)

	return firstErr
}

// Reset clears all allocations and unmaps extra chunks, keeping only the
// first chunk mapped for reuse.
//
// IMPORTANT:
//  1. Do NOT call Reset concurrently with allocations
//  2. All slices and offsets from before Reset become invalid
//  3. Useful for reusing the arena across independent build phases
//
// Reset is cheaper than Close + New when the arena will be refilled.
func (a *Arena) Reset() {
	// Wait for in-flight readers to finish
	for a.refs.Load() > 0 {
		runtime.Gosched()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Invalidate outstanding references
	a.generation.Add(1)

	count := a.chunkCount.Load()
	if count > 0 {
		if a.acquirer != nil {
			// The first chunk stays, so return (count - 1) * chunkSize.
			chunksToFree := count - 1
			if chunksToFree > 0 {
				a.acquirer.ReleaseMemory(int64(chunksToFree) * int64(a.chunkSize))
			}
		}

		firstChunk := a.chunks[0].Load()
		firstChunk.offset.Store(0)

		countInt, _ := conv.Uint32ToInt(count) // Safe: count <= MaxChunks
		for i := 1; i < countInt; i++ {
			chunk := a.chunks[i].Load()
			if chunk != nil && chunk.mapping != nil {
				_ = chunk.mapping.Close()
			}
			a.chunks[i].Store(nil)
		}
		a.chunkCount.Store(1)
		a.current.Store(firstChunk)

		a.stats.ActiveChunks.Store(1)
		chunkSizeU64, _ := conv.IntToUint64(a.chunkSize)
		a.stats.BytesReserved.Store(chunkSizeU64)
	}

	// Clear usage stats (historical ChunksAllocated/TotalAllocs unchanged)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)

	// Reserve offset 0 as the null reference again
	if a.chunkCount.Load() > 0 {
		_, _, _ = a.alloc(context.Background(), 1, a.alignment)
	}
}

// Usage returns the memory usage percentage.
func (a *Arena) Usage() float64 {
	stats := a.Stats()
	if stats.BytesReserved == 0 {
		return 0
	}

	return float64(stats.BytesUsed) / float64(stats.BytesReserved) * 100
}

func (a *Arena) String() string {
	stats := a.Stats()

	return fmt.Sprintf(
		"Arena{chunks: %d, reserved: %.2f MB, used: %.2f MB, wasted: %.2f KB, usage: %.1f%%, allocs: %d}",
		stats.ActiveChunks,
		float64(stats.BytesReserved)/(1024*1024),
		float64(stats.BytesUsed)/(1024*1024),
		float64(stats.BytesWasted)/1024,
		a.Usage(),
		stats.TotalAllocs,
	)
}
