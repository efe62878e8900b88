package tracking

import (
	"testing"

	"github.com/hupe1980/memgo/testutil"
)

// FuzzAllocator exercises the header round trip with arbitrary sizes. Any
// successful Allocate must free cleanly and leave the statistics at zero.
func FuzzAllocator(f *testing.F) {
	// Seed with typical and boundary sizes
	f.Add(1)
	f.Add(8)
	f.Add(63)
	f.Add(4096)

	f.Fuzz(func(t *testing.T, size int) {
		// Skip sizes the allocator rejects up front and inputs large
		// enough to exhaust the test machine
		if size <= 0 || size > 1<<20 {
			t.Skip()
		}

		a := New(testutil.HeapAllocator{})

		buf, err := a.Allocate(size)
		if err != nil {
			t.Fatalf("Allocate(%d) failed: %v", size, err)
		}
		if len(buf) != size {
			t.Fatalf("Allocate(%d) returned %d bytes", size, len(buf))
		}

		want := int64(size + HeaderSize)
		if a.TotalBytes() != want {
			t.Fatalf("TotalBytes = %d, want %d", a.TotalBytes(), want)
		}

		// Touch the whole payload; a bad header offset would corrupt it.
		for i := range buf {
			buf[i] = byte(i)
		}

		if err := a.Free(buf); err != nil {
			t.Fatalf("Free failed: %v", err)
		}
		if a.AllocationCount() != 0 || a.TotalBytes() != 0 {
			t.Fatalf("counters not zero after free: %v", a.Stats())
		}
	})
}
