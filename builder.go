// Package memgo provides composable memory-management building blocks.
//
// This file implements backend-specific fluent builder APIs for assembling allocator stacks.
// Builders are immutable - each method returns a new builder with the updated configuration.
package memgo

// =============================================================================
// Heap Builder (Immutable)
// =============================================================================

// Heap creates a builder for a stack backed by the Go heap. Buffers are
// cache-line aligned and reclaimed by the garbage collector once freed and
// dropped.
//
// The builder is immutable - each method returns a new builder with the updated configuration.
// This ensures thread-safety and prevents accidental state sharing.
//
// Example:
//
//	stack, err := memgo.Heap().
//	    MemoryLimit(64 << 20).
//	    LeakCheck().
//	    Build()
func Heap() HeapBuilder {
	return HeapBuilder{}
}

// HeapBuilder is an immutable fluent builder for creating heap-backed stacks.
// Each method returns a new builder with the updated configuration.
type HeapBuilder struct {
	base        Allocator
	memoryLimit int64
	leakCheck   bool
	leakOrigins bool
	logger      *Logger
	metrics     MetricsCollector
}

// BaseAllocator sets a custom innermost allocator. Default: DefaultAllocator.
func (b HeapBuilder) BaseAllocator(a Allocator) HeapBuilder {
	b.base = a
	return b
}

// MemoryLimit caps live memory at the given number of bytes.
// Default: 0 (unlimited).
func (b HeapBuilder) MemoryLimit(bytes int64) HeapBuilder {
	b.memoryLimit = bytes
	return b
}

// LeakCheck enables the leak-check layer: double frees are rejected and
// Close reports buffers that were never freed.
func (b HeapBuilder) LeakCheck() HeapBuilder {
	b.leakCheck = true
	return b
}

// LeakOrigins records the call site of every allocation for leak reports.
// Implies LeakCheck.
func (b HeapBuilder) LeakOrigins() HeapBuilder {
	b.leakCheck = true
	b.leakOrigins = true
	return b
}

// Logger sets the structured logger for operation tracing.
func (b HeapBuilder) Logger(l *Logger) HeapBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b HeapBuilder) Metrics(mc MetricsCollector) HeapBuilder {
	b.metrics = mc
	return b
}

// Build creates the heap-backed stack.
func (b HeapBuilder) Build() (*Stack, error) {
	var optFns []Option

	if b.base != nil {
		optFns = append(optFns, WithBaseAllocator(b.base))
	}
	if b.memoryLimit != 0 {
		optFns = append(optFns, WithMemoryLimit(b.memoryLimit))
	}
	if b.leakOrigins {
		optFns = append(optFns, WithLeakOriginCapture())
	} else if b.leakCheck {
		optFns = append(optFns, WithLeakCheck())
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}

	return New(optFns...)
}

// MustBuild creates the stack, panicking on error.
func (b HeapBuilder) MustBuild() *Stack {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// =============================================================================
// Arena Builder (Immutable)
// =============================================================================

// Arena creates a builder for a stack backed by an off-heap arena with the
// specified chunk size in bytes. A non-positive chunk size selects
// arena.DefaultChunkSize; other sizes are rounded up to the next power of
// two.
//
// Arena memory lives outside the Go heap: the garbage collector never scans
// it, and it is returned to the OS in bulk by Purge or Close rather than per
// buffer.
//
// The builder is immutable - each method returns a new builder with the updated configuration.
//
// Example:
//
//	stack, err := memgo.Arena(1 << 20).
//	    MemoryLimit(256 << 20).
//	    ReleasePacing(64 << 20).
//	    Build()
func Arena(chunkSize int) ArenaBuilder {
	return ArenaBuilder{
		chunkSize: chunkSize,
	}
}

// ArenaBuilder is an immutable fluent builder for creating arena-backed
// stacks. Each method returns a new builder with the updated configuration.
type ArenaBuilder struct {
	chunkSize     int
	memoryLimit   int64
	releasePerSec int64
	leakCheck     bool
	leakOrigins   bool
	logger        *Logger
	metrics       MetricsCollector
}

// MemoryLimit caps mapped chunk memory at the given number of bytes.
// Default: 0 (unlimited).
func (b ArenaBuilder) MemoryLimit(bytes int64) ArenaBuilder {
	b.memoryLimit = bytes
	return b
}

// ReleasePacing throttles how fast Purge returns memory to the OS, in bytes
// per second. Default: 0 (unpaced).
func (b ArenaBuilder) ReleasePacing(bytesPerSec int64) ArenaBuilder {
	b.releasePerSec = bytesPerSec
	return b
}

// LeakCheck enables the leak-check layer: double frees are rejected and
// Close reports buffers that were never freed.
func (b ArenaBuilder) LeakCheck() ArenaBuilder {
	b.leakCheck = true
	return b
}

// LeakOrigins records the call site of every allocation for leak reports.
// Implies LeakCheck.
func (b ArenaBuilder) LeakOrigins() ArenaBuilder {
	b.leakCheck = true
	b.leakOrigins = true
	return b
}

// Logger sets the structured logger for operation tracing.
func (b ArenaBuilder) Logger(l *Logger) ArenaBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b ArenaBuilder) Metrics(mc MetricsCollector) ArenaBuilder {
	b.metrics = mc
	return b
}

// Build creates the arena-backed stack.
func (b ArenaBuilder) Build() (*Stack, error) {
	optFns := []Option{WithArenaBacking(b.chunkSize)}

	if b.memoryLimit != 0 {
		optFns = append(optFns, WithMemoryLimit(b.memoryLimit))
	}
	if b.releasePerSec > 0 {
		optFns = append(optFns, WithReleasePacing(b.releasePerSec))
	}
	if b.leakOrigins {
		optFns = append(optFns, WithLeakOriginCapture())
	} else if b.leakCheck {
		optFns = append(optFns, WithLeakCheck())
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}

	return New(optFns...)
}

// MustBuild creates the stack, panicking on error.
func (b ArenaBuilder) MustBuild() *Stack {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
