package fixedpool

import (
	"fmt"
	"testing"
)

type benchPayload struct {
	ID      uint64
	Coords  [8]float32
	Flags   uint32
	Padding [12]byte
}

func BenchmarkPool_AllocFree(b *testing.B) {
	for _, capacity := range []int{16, 256, 4096} {
		b.Run(fmt.Sprintf("capacity_%d", capacity), func(b *testing.B) {
			p, err := New[benchPayload](capacity)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				v, err := p.Alloc()
				if err != nil {
					b.Fatal(err)
				}
				if err := p.Free(v); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPool_FillDrain(b *testing.B) {
	const capacity = 1024

	p, err := New[benchPayload](capacity)
	if err != nil {
		b.Fatal(err)
	}
	ptrs := make([]*benchPayload, capacity)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		for j := 0; j < capacity; j++ {
			v, err := p.Alloc()
			if err != nil {
				b.Fatal(err)
			}
			ptrs[j] = v
		}
		for j := capacity - 1; j >= 0; j-- {
			if err := p.Free(ptrs[j]); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkHeap_AllocFree(b *testing.B) {
	// Baseline: plain heap allocation of the same payload for comparison
	// with BenchmarkPool_AllocFree.
	var sink *benchPayload

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		sink = new(benchPayload)
	}

	_ = sink
}
