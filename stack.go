package memgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/memgo/arena"
	"github.com/hupe1980/memgo/leak"
	"github.com/hupe1980/memgo/resource"
	"github.com/hupe1980/memgo/tracking"
)

// Stack is a composed allocator with accounting and observability. From the
// inside out it layers:
//
//	base allocator (Go heap or arena)
//	resource.LimitedAllocator (optional, heap-backed stacks with a memory limit)
//	tracking.Allocator (always, size headers and live counters)
//	leak.Allocator (optional, live-allocation side table)
//
// Stack itself satisfies Allocator, so a Stack can serve as the upstream of
// any other layer in this module.
type Stack struct {
	alloc   Allocator // outermost layer, serves Allocate/Free
	arena   *arena.Arena
	ctrl    *resource.Controller
	limited *resource.LimitedAllocator
	tracker *tracking.Allocator
	leaks   *leak.Allocator
	metrics MetricsCollector
	logger  *Logger
	closed  atomic.Bool
}

// New creates a Stack from the given options. Most callers should use the
// fluent builders Heap() and Arena() instead.
func New(optFns ...Option) (*Stack, error) {
	opts := applyOptions(optFns)

	if opts.logger == nil {
		opts.logger = NoopLogger()
	}

	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}

	if opts.memoryLimitBytes < 0 {
		return nil, fmt.Errorf("memgo: memory limit must be non-negative, got %d", opts.memoryLimitBytes)
	}

	if opts.arenaBacked && opts.base != nil {
		return nil, fmt.Errorf("memgo: a custom base allocator cannot be combined with arena backing")
	}

	s := &Stack{
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}

	if opts.memoryLimitBytes > 0 || opts.releaseBytesPerSec > 0 {
		s.ctrl = resource.NewController(resource.Config{
			MemoryLimitBytes:   opts.memoryLimitBytes,
			ReleaseBytesPerSec: opts.releaseBytesPerSec,
		})
	}

	base := opts.base

	switch {
	case opts.arenaBacked:
		// The controller budgets mapped chunk memory here, not individual
		// allocations: chunks are what the process actually consumes.
		var arenaOpts []arena.Option
		if s.ctrl != nil {
			arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(s.ctrl))
			if lim := s.ctrl.ReleaseLimiter(); lim != nil {
				arenaOpts = append(arenaOpts, arena.WithReleaseLimiter(lim))
			}
		}

		ar, err := arena.New(opts.chunkSize, arenaOpts...)
		if err != nil {
			return nil, err
		}

		s.arena = ar
		base = ar
	default:
		if base == nil {
			base = DefaultAllocator
		}

		if s.ctrl != nil {
			s.limited = resource.NewLimitedAllocator(base, s.ctrl)
			base = s.limited
		}
	}

	s.tracker = tracking.New(base)

	var outer Allocator = s.tracker

	if opts.leakCheck {
		// Record allocations at their tracked cost, header included, so
		// leak reports agree with the tracking counters.
		leakOpts := []leak.Option{leak.WithBlockOverhead(tracking.HeaderSize)}
		if opts.leakOrigins {
			// Stack.Allocate adds one forwarding frame; skip it so reports
			// name the stack's caller.
			leakOpts = append(leakOpts, leak.WithOriginCapture(), leak.WithOriginSkip(1))
		}

		s.leaks = leak.New(s.tracker, leakOpts...)
		outer = s.leaks
	}

	s.alloc = outer

	s.logger.DebugContext(context.Background(), "stack created",
		"arena_backed", opts.arenaBacked,
		"memory_limit", opts.memoryLimitBytes,
		"leak_check", opts.leakCheck,
	)

	return s, nil
}

// Allocate obtains a zeroed buffer of exactly size bytes through the full
// layer chain. A size <= 0 returns (nil, nil) with no accounting.
func (s *Stack) Allocate(size int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	buf, err := s.alloc.Allocate(size)
	s.metrics.RecordAlloc(size, err)
	s.logger.LogAlloc(context.Background(), size, err)

	return buf, err
}

// Free returns a buffer previously obtained from Allocate. The slice must be
// exactly the one Allocate returned. Freeing nil or an empty slice is a
// no-op.
func (s *Stack) Free(buf []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.alloc.Free(buf)
	s.metrics.RecordFree(len(buf), err)
	s.logger.LogFree(context.Background(), len(buf), err)

	return err
}

// AllocationCount returns the number of live allocations, including their
// tracking headers.
func (s *Stack) AllocationCount() int64 {
	return s.tracker.AllocationCount()
}

// TotalBytes returns the bytes held by live allocations, including their
// tracking headers.
func (s *Stack) TotalBytes() int64 {
	return s.tracker.TotalBytes()
}

// MemoryUsage returns the bytes currently charged against the memory limit.
// It returns 0 when no limit is configured.
func (s *Stack) MemoryUsage() int64 {
	return s.ctrl.MemoryUsage()
}

// Controller returns the resource controller governing this stack, or nil
// when neither a memory limit nor release pacing is configured.
func (s *Stack) Controller() *resource.Controller {
	return s.ctrl
}

// Arena returns the backing arena, or nil for heap-backed stacks. Use it for
// arena-specific operations such as typed slice allocation.
func (s *Stack) Arena() *arena.Arena {
	return s.arena
}

// LeakCheckEnabled reports whether the leak-check layer is active.
func (s *Stack) LeakCheckEnabled() bool {
	return s.leaks != nil
}

// ReportLeaks writes every live allocation to w in allocation order and
// reports whether any were found. It returns false without writing when leak
// checking is disabled.
func (s *Stack) ReportLeaks(w io.Writer) bool {
	if s.leaks == nil {
		return false
	}

	return s.leaks.ReportLeaks(w)
}

// Purge releases unused arena chunks back to the OS, paced by the configured
// release limiter. It is a no-op on heap-backed stacks.
//
// Purge invalidates every buffer allocated so far; the live counters are
// reset accordingly. Callers must guarantee no buffer obtained before the
// purge is used afterwards.
func (s *Stack) Purge(ctx context.Context) error {
	if s.arena == nil {
		return nil
	}

	if s.closed.Load() {
		return ErrClosed
	}

	before := s.arena.Stats().BytesReserved

	err := s.arena.Purge(ctx)

	// Even an interrupted purge has bumped the generation and invalidated
	// every buffer, so the accounting layers start over.
	if !errors.Is(err, arena.ErrClosed) {
		s.tracker.Reset()
		if s.leaks != nil {
			s.leaks.Reset()
		}
	}

	released := before - s.arena.Stats().BytesReserved
	s.logger.LogPurge(ctx, int(released), err)

	return err
}

// StackStats aggregates the counters of every configured layer. Optional
// layers report nil when disabled.
type StackStats struct {
	Tracking    tracking.Stats
	Leak        *leak.Stats
	Arena       *arena.Stats
	MemoryUsage int64
	MemoryLimit int64
}

// String implements the fmt.Stringer interface.
func (s StackStats) String() string {
	out := s.Tracking.String()

	if s.Leak != nil {
		out += " " + s.Leak.String()
	}

	if s.Arena != nil {
		out += fmt.Sprintf(" Arena{reserved: %d, used: %d, chunks: %d}",
			s.Arena.BytesReserved, s.Arena.BytesUsed, s.Arena.ActiveChunks)
	}

	if s.MemoryLimit > 0 {
		out += fmt.Sprintf(" Budget{used: %d, limit: %d}", s.MemoryUsage, s.MemoryLimit)
	}

	return out
}

// Stats returns a snapshot of the counters of every configured layer.
func (s *Stack) Stats() StackStats {
	stats := StackStats{
		Tracking:    s.tracker.Stats(),
		MemoryUsage: s.ctrl.MemoryUsage(),
		MemoryLimit: s.ctrl.MemoryLimit(),
	}

	if s.leaks != nil {
		ls := s.leaks.Stats()
		stats.Leak = &ls
	}

	if s.arena != nil {
		as := s.arena.Stats()
		stats.Arena = &as
	}

	return stats
}
