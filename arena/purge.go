package arena

import (
	"context"
	"runtime"

	"golang.org/x/time/rate"

	"github.com/hupe1980/memgo/internal/conv"
	"github.com/hupe1980/memgo/internal/mmap"
)

// releaseLimiter paces how fast purged memory is handed back to the OS.
// *rate.Limiter satisfies it.
type releaseLimiter interface {
	WaitN(ctx context.Context, n int) error
}

// WithReleaseLimiter paces Purge with the given limiter, in bytes per
// second. The limiter's burst must be at least the chunk size, otherwise
// pacing fails and Purge falls back to releasing immediately.
func WithReleaseLimiter(l *rate.Limiter) Option {
	return func(a *Arena) {
		if l != nil {
			a.limiter = l
		}
	}
}

// Purge invalidates all allocations and returns arena memory to the OS
// while keeping the arena usable: chunks beyond the first are unmapped and
// the retained chunk's pages are advised away, to be faulted back in
// zeroed on next use.
//
// Like Reset, Purge must not run concurrently with allocations. With a
// release limiter configured the returns are paced; if the context expires
// mid-purge the remaining memory is released unpaced and the context error
// is reported after the arena is back in a consistent state.
func (a *Arena) Purge(ctx context.Context) error {
	// Wait for in-flight readers to finish
	for a.refs.Load() > 0 {
		runtime.Gosched()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	count := a.chunkCount.Load()
	if count == 0 {
		return ErrClosed
	}

	// Invalidate outstanding references
	a.generation.Add(1)

	// Detach the victim chunks before any pacing so the arena is
	// consistent no matter when the context gives up.
	countInt, _ := conv.Uint32ToInt(count) // Safe: count <= MaxChunks
	victims := make([]*chunk, 0, countInt-1)
	for i := 1; i < countInt; i++ {
		if c := a.chunks[i].Load(); c != nil {
			victims = append(victims, c)
		}
		a.chunks[i].Store(nil)
	}

	firstChunk := a.chunks[0].Load()
	firstChunk.offset.Store(0)
	a.chunkCount.Store(1)
	a.current.Store(firstChunk)

	a.stats.ActiveChunks.Store(1)
	chunkSizeU64, _ := conv.IntToUint64(a.chunkSize)
	a.stats.BytesReserved.Store(chunkSizeU64)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)

	if a.acquirer != nil && len(victims) > 0 {
		a.acquirer.ReleaseMemory(int64(len(victims)) * int64(a.chunkSize))
	}

	var purgeErr error

	pace := func() {
		if a.limiter == nil || purgeErr != nil {
			return
		}
		if err := a.limiter.WaitN(ctx, a.chunkSize); err != nil {
			purgeErr = err
		}
	}

	for _, c := range victims {
		pace()
		if c.mapping != nil {
			if err := c.mapping.Close(); err != nil && purgeErr == nil {
				purgeErr = err
			}
		}
	}

	// Hand the retained chunk's pages back lazily.
	pace()
	if firstChunk.mapping != nil {
		if err := firstChunk.mapping.Advise(mmap.AccessDontNeed); err != nil && purgeErr == nil {
			purgeErr = err
		}
	}

	// Reserve offset 0 as the null reference again
	_, _, _ = a.alloc(context.Background(), 1, a.alignment)

	return purgeErr
}
