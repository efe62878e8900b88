package arena

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/memgo/tracking"
)

var errBudget = errors.New("budget exhausted")

// fakeAcquirer is a MemoryAcquirer that enforces a byte limit and records
// traffic.
type fakeAcquirer struct {
	limit    int64
	acquired atomic.Int64
	released atomic.Int64
}

func (f *fakeAcquirer) AcquireMemory(_ context.Context, amount int64) error {
	if f.limit > 0 && f.acquired.Load()+amount-f.released.Load() > f.limit {
		return errBudget
	}
	f.acquired.Add(amount)

	return nil
}

func (f *fakeAcquirer) ReleaseMemory(amount int64) {
	f.released.Add(amount)
}

func TestNew(t *testing.T) {
	t.Run("default chunk size", func(t *testing.T) {
		a, err := New(0)
		require.NoError(t, err)
		defer a.Close()

		assert.Equal(t, uint64(DefaultChunkSize), a.Stats().BytesReserved)
	})

	t.Run("rounds up to power of two", func(t *testing.T) {
		a, err := New(1000)
		require.NoError(t, err)
		defer a.Close()

		assert.Equal(t, uint64(1024), a.Stats().BytesReserved)
	})
}

func TestArena_Alloc(t *testing.T) {
	t.Run("offsets are aligned and deterministic", func(t *testing.T) {
		a, err := New(1024)
		require.NoError(t, err)
		defer a.Close()

		// Offset 0 is reserved as null, so the first allocation starts at
		// the alignment boundary after it.
		o1, b1, err := a.Alloc(5)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), o1)
		assert.GreaterOrEqual(t, len(b1), 5)

		o2, _, err := a.Alloc(5)
		require.NoError(t, err)
		assert.Equal(t, uint64(16), o2)
	})

	t.Run("non-positive size", func(t *testing.T) {
		a, err := New(1024)
		require.NoError(t, err)
		defer a.Close()

		off, buf, err := a.Alloc(0)
		require.NoError(t, err)
		assert.Zero(t, off)
		assert.Nil(t, buf)
	})

	t.Run("larger than chunk size", func(t *testing.T) {
		a, err := New(1024)
		require.NoError(t, err)
		defer a.Close()

		_, _, err = a.Alloc(2048)
		require.ErrorIs(t, err, ErrAllocationFailed)

		// The failed request must not have grown the arena.
		assert.Equal(t, uint64(1), a.Stats().ActiveChunks)
	})
}

func TestArena_AllocBytes(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Close()

	// Exact length even though the arena pads to the alignment internally.
	buf, err := a.AllocBytes(5)
	require.NoError(t, err)
	assert.Len(t, buf, 5)

	for i := range buf {
		buf[i] = byte(i + 1)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, buf)
}

func TestArena_AllocPointer(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Close()

	// An odd-sized claim first, so the bump offset is unaligned for the
	// stricter request that follows.
	_, err = a.AllocPointer(3, 1)
	require.NoError(t, err)

	p, err := a.AllocPointer(32, 16)
	require.NoError(t, err)
	assert.Zero(t, uintptr(p)%16)

	// The default alignment holds for later allocations too.
	off, _, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Zero(t, off%uint64(DefaultAlignment))
}

func TestArena_GetAndRefs(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Close()

	off, buf, err := a.Alloc(8)
	require.NoError(t, err)
	buf[0] = 42

	// Get resolves the offset to the same memory.
	p := a.Get(off)
	require.NotNil(t, p)
	assert.Equal(t, byte(42), *(*byte)(p))

	// A generation-stamped ref survives until the arena is reset.
	ref := a.Ref(off)
	assert.NotNil(t, a.GetSafe(ref))

	a.Reset()
	assert.Nil(t, a.GetSafe(ref))

	// Wildly out-of-range offsets are a programming error.
	assert.Panics(t, func() { a.Get(1 << 40) })
}

func TestArena_ChunkGrowth(t *testing.T) {
	a, err := New(256)
	require.NoError(t, err)
	defer a.Close()

	bufs := make([][]byte, 0, 10)
	for i := 0; i < 10; i++ {
		buf, err := a.AllocBytes(128)
		require.NoError(t, err)
		buf[0] = byte(i)
		bufs = append(bufs, buf)
	}

	stats := a.Stats()
	assert.Greater(t, stats.ActiveChunks, uint64(1))

	// Data in earlier chunks is untouched by growth.
	for i, buf := range bufs {
		assert.Equal(t, byte(i), buf[0])
	}
}

func TestArena_TypedSlices(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Close()

	t.Run("uint32", func(t *testing.T) {
		s, err := a.AllocUint32Slice(10)
		require.NoError(t, err)
		assert.Len(t, s, 0)
		assert.Equal(t, 10, cap(s))

		s = append(s, 1, 2, 3)
		assert.Equal(t, []uint32{1, 2, 3}, s)
	})

	t.Run("uint64", func(t *testing.T) {
		s, err := a.AllocUint64Slice(4)
		require.NoError(t, err)
		assert.Equal(t, 4, cap(s))

		s = append(s, 1<<40)
		assert.Equal(t, uint64(1<<40), s[0])
	})

	t.Run("float32", func(t *testing.T) {
		s, err := a.AllocFloat32Slice(4)
		require.NoError(t, err)

		s = append(s, 1.5, 2.5)
		assert.Equal(t, []float32{1.5, 2.5}, s)
	})

	t.Run("zero capacity", func(t *testing.T) {
		s, err := a.AllocUint32Slice(0)
		require.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestArena_AllocatorContract(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)
	defer a.Close()

	// The arena slots under the tracking decorator as a byte allocator.
	ta := tracking.New(a)

	s, err := tracking.AllocSlice[uint64](ta, 4)
	require.NoError(t, err)
	require.Len(t, s, 4)
	assert.Equal(t, int64(4*8+tracking.HeaderSize), ta.TotalBytes())

	s[0] = 7

	require.NoError(t, tracking.FreeSlice(ta, s))
	assert.Equal(t, int64(0), ta.TotalBytes())

	// Free on the arena itself is a bulk-reclaim no-op.
	buf, err := a.Allocate(16)
	require.NoError(t, err)
	assert.Len(t, buf, 16)
	require.NoError(t, a.Free(buf))
}

func TestArena_Close(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)

	_, err = a.AllocBytes(100)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.Equal(t, uint64(0), a.Stats().ActiveChunks)

	// Idempotent, and allocations now fail.
	require.NoError(t, a.Close())

	_, err = a.AllocBytes(1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestArena_Reset(t *testing.T) {
	a, err := New(256)
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 10; i++ {
		_, err := a.AllocBytes(128)
		require.NoError(t, err)
	}
	allocsBefore := a.Stats().TotalAllocs
	require.Greater(t, a.Stats().ActiveChunks, uint64(1))

	a.Reset()

	stats := a.Stats()
	assert.Equal(t, uint64(1), stats.ActiveChunks)
	assert.Equal(t, uint64(256), stats.BytesReserved)

	// Historical counters survive, plus one for the re-reserved null slot.
	assert.Equal(t, allocsBefore+1, stats.TotalAllocs)

	// Offset 0 stays reserved after the reset.
	off, _, err := a.Alloc(8)
	require.NoError(t, err)
	assert.NotZero(t, off)
}

func TestArena_Purge(t *testing.T) {
	t.Run("unpaced", func(t *testing.T) {
		a, err := New(4096)
		require.NoError(t, err)
		defer a.Close()

		for i := 0; i < 3; i++ {
			_, err := a.AllocBytes(4000)
			require.NoError(t, err)
		}
		require.Greater(t, a.Stats().ActiveChunks, uint64(1))

		off, _, err := a.Alloc(8)
		require.NoError(t, err)
		ref := a.Ref(off)

		require.NoError(t, a.Purge(context.Background()))

		stats := a.Stats()
		assert.Equal(t, uint64(1), stats.ActiveChunks)
		assert.Equal(t, uint64(4096), stats.BytesReserved)
		assert.Nil(t, a.GetSafe(ref))

		// The arena is immediately usable again.
		buf, err := a.AllocBytes(64)
		require.NoError(t, err)
		assert.Len(t, buf, 64)
	})

	t.Run("paced", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Inf, 0)

		a, err := New(4096, WithReleaseLimiter(limiter))
		require.NoError(t, err)
		defer a.Close()

		for i := 0; i < 3; i++ {
			_, err := a.AllocBytes(4000)
			require.NoError(t, err)
		}

		require.NoError(t, a.Purge(context.Background()))
		assert.Equal(t, uint64(1), a.Stats().ActiveChunks)
	})

	t.Run("interrupted pacing still releases", func(t *testing.T) {
		limiter := rate.NewLimiter(1, 8192)

		a, err := New(4096, WithReleaseLimiter(limiter))
		require.NoError(t, err)
		defer a.Close()

		for i := 0; i < 3; i++ {
			_, err := a.AllocBytes(4000)
			require.NoError(t, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = a.Purge(ctx)
		require.Error(t, err)

		// The memory was still released and the arena stays consistent.
		assert.Equal(t, uint64(1), a.Stats().ActiveChunks)

		_, err = a.AllocBytes(64)
		require.NoError(t, err)
	})

	t.Run("closed arena", func(t *testing.T) {
		a, err := New(1024)
		require.NoError(t, err)
		require.NoError(t, a.Close())

		require.ErrorIs(t, a.Purge(context.Background()), ErrClosed)
	})
}

func TestArena_MemoryAcquirer(t *testing.T) {
	t.Run("budget enforced on growth", func(t *testing.T) {
		acq := &fakeAcquirer{limit: 4096}

		a, err := New(4096, WithMemoryAcquirer(acq))
		require.NoError(t, err)
		defer a.Close()

		// The first chunk fits the budget; growing past it does not.
		_, err = a.AllocBytes(4000)
		require.NoError(t, err)

		_, err = a.AllocBytes(4000)
		require.ErrorIs(t, err, errBudget)
	})

	t.Run("close returns the budget", func(t *testing.T) {
		acq := &fakeAcquirer{}

		a, err := New(1024, WithMemoryAcquirer(acq))
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			_, err := a.AllocBytes(1000)
			require.NoError(t, err)
		}

		require.NoError(t, a.Close())
		assert.Equal(t, acq.acquired.Load(), acq.released.Load())
	})
}

func TestArena_ConcurrentAlloc(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)
	defer a.Close()

	const (
		goroutines = 8
		allocs     = 200
	)

	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for i := 0; i < allocs; i++ {
				buf, err := a.AllocBytes(16)
				if err != nil {
					errs[id] = err
					return
				}

				// Claim the slice; overlap with another goroutine's
				// allocation would show up as a torn value.
				for j := range buf {
					buf[j] = byte(id)
				}
				for j := range buf {
					if buf[j] != byte(id) {
						errs[id] = errors.New("overlapping allocation detected")
						return
					}
				}
			}
		}(g)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// Every byte requested is accounted for (plus the null reservation).
	assert.Equal(t, uint64(goroutines*allocs*16+1), a.Stats().BytesUsed)
}

func TestArena_String(t *testing.T) {
	a, err := New(1024)
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.String(), "Arena{")
	assert.NotZero(t, a.Usage())
}
