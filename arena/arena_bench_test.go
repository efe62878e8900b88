package arena

import (
	"fmt"
	"testing"
)

func BenchmarkArena_Alloc(b *testing.B) {
	for _, size := range []int{8, 64, 512, 4096} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			a, err := New(16 * 1024 * 1024)
			if err != nil {
				b.Fatal(err)
			}
			defer a.Close()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				// Periodic reset keeps long runs from hitting the chunk cap.
				if i%1_000_000 == 0 && i > 0 {
					a.Reset()
				}
				if _, err := a.AllocBytes(size); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkArena_AllocParallel(b *testing.B) {
	a, err := New(16 * 1024 * 1024)
	if err != nil {
		b.Fatal(err)
	}
	defer a.Close()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := a.AllocBytes(64); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkHeap_Alloc(b *testing.B) {
	// Baseline: plain make for comparison with BenchmarkArena_Alloc.
	for _, size := range []int{8, 64, 512, 4096} {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			var sink []byte

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				sink = make([]byte, size)
			}

			_ = sink
		})
	}
}
