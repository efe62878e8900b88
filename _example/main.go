package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hupe1980/memgo"
	"github.com/hupe1980/memgo/fixedpool"
	"github.com/hupe1980/memgo/refcount"
)

type particle struct {
	X, Y, Z float32
	Mass    float32
}

func main() {
	size := 100000
	bufBytes := 4096

	fmt.Println("--- Heap Stack ---")
	fmt.Println("Allocations:", size)
	fmt.Println("Buffer size:", bufBytes)

	stack := memgo.Heap().
		MemoryLimit(1 << 30).
		LeakCheck().
		MustBuild()

	start := time.Now()

	bufs := make([][]byte, 0, size)
	for i := 0; i < size; i++ {
		buf, err := stack.Allocate(bufBytes)
		if err != nil {
			log.Fatal(err)
		}
		bufs = append(bufs, buf)
	}

	fmt.Printf("Seconds: %.2f\n", time.Since(start).Seconds())
	fmt.Println(stack.Stats())
	fmt.Println()

	for _, buf := range bufs {
		if err := stack.Free(buf); err != nil {
			log.Fatal(err)
		}
	}

	if err := stack.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Arena Stack ---")

	arenaStack := memgo.Arena(1 << 20).
		MemoryLimit(512 << 20).
		ReleasePacing(256 << 20).
		MustBuild()

	start = time.Now()

	for i := 0; i < size; i++ {
		if _, err := arenaStack.Allocate(bufBytes); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("Seconds: %.2f\n", time.Since(start).Seconds())
	fmt.Println(arenaStack.Arena())
	fmt.Println()

	fmt.Println("--- Purge ---")

	start = time.Now()

	if err := arenaStack.Purge(context.Background()); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seconds: %.2f\n", time.Since(start).Seconds())
	fmt.Println(arenaStack.Arena())
	fmt.Println()

	if err := arenaStack.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Fixed Pool ---")

	pool, err := fixedpool.New[particle](1024)
	if err != nil {
		log.Fatal(err)
	}

	start = time.Now()

	for cycle := 0; cycle < 1000; cycle++ {
		live := make([]*particle, 0, 1024)
		for i := 0; i < 1024; i++ {
			p, err := pool.Alloc()
			if err != nil {
				log.Fatal(err)
			}
			p.Mass = 1
			live = append(live, p)
		}
		for _, p := range live {
			if err := pool.Free(p); err != nil {
				log.Fatal(err)
			}
		}
	}

	fmt.Printf("Seconds: %.2f\n", time.Since(start).Seconds())
	fmt.Println(pool.Stats())
	fmt.Println()

	fmt.Println("--- Refcounted Handles ---")

	res := newBlob(64)
	h := refcount.Wrap(res)

	clone := h.Clone()
	fmt.Println("refs after clone:", res.refs)

	if err := clone.Close(); err != nil {
		log.Fatal(err)
	}
	if err := h.Close(); err != nil {
		log.Fatal(err)
	}

	fmt.Println("refs after close:", res.refs)
	fmt.Println("disposed:", res.disposed)
}

// blob is a reference-counted resource with an explicit dispose step.
type blob struct {
	data     []byte
	refs     int
	disposed bool
}

func newBlob(size int) *blob {
	return &blob{data: make([]byte, size), refs: 1}
}

func (b *blob) AddRef() { b.refs++ }

func (b *blob) Release() {
	b.refs--
	if b.refs == 0 {
		b.data = nil
		b.disposed = true
	}
}
