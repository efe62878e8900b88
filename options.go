package memgo

import (
	"log/slog"
)

type options struct {
	base               Allocator
	arenaBacked        bool
	chunkSize          int
	memoryLimitBytes   int64
	releaseBytesPerSec int64
	leakCheck          bool
	leakOrigins        bool
	metricsCollector   MetricsCollector
	logger             *Logger
}

// Option configures Stack construction behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. backend-specific constructor variants). Most callers should use
// the fluent builders Heap() and Arena() instead of passing options to
// New directly.
//
// Breaking changes are expected while memgo is pre-release.
type Option func(*options)

// WithBaseAllocator configures the innermost allocator the stack draws
// memory from.
//
// If nil is passed, DefaultAllocator is used. Cannot be combined with
// WithArenaBacking: an arena-backed stack always allocates from its own
// arena.
func WithBaseAllocator(a Allocator) Option {
	return func(o *options) {
		if a == nil {
			a = DefaultAllocator
		}
		o.base = a
	}
}

// WithArenaBacking backs the stack with an off-heap arena instead of the
// Go heap. chunkSize is the size of each mapped chunk in bytes; a
// non-positive value selects arena.DefaultChunkSize, other values are
// rounded up to the next power of two.
//
// Arena memory is invisible to the garbage collector and is returned to
// the OS on Stack.Close or Stack.Purge, not when buffers are freed.
//
// Example:
//
//	stack, _ := memgo.New(memgo.WithArenaBacking(1 << 20))
//	defer stack.Close()
func WithArenaBacking(chunkSize int) Option {
	return func(o *options) {
		o.arenaBacked = true
		o.chunkSize = chunkSize
	}
}

// WithMemoryLimit caps the memory the stack may hold at once, in bytes.
//
// On a heap-backed stack every allocation is charged against the limit
// (payload plus tracking header) and exhaustion fails fast with
// resource.ErrMemoryLimitExceeded. On an arena-backed stack the limit
// governs mapped chunk memory instead, which is what the process actually
// consumes; growing past it fails the allocation that needed the chunk.
//
// A limit of 0 means unlimited. New rejects negative limits.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimitBytes = bytes
	}
}

// WithReleasePacing throttles how fast an arena-backed stack returns
// memory to the OS during Purge, in bytes per second. A value of 0
// disables pacing. The burst is one full chunk, so pacing values below
// the chunk size still make progress.
//
// Heap-backed stacks ignore pacing: the garbage collector owns
// reclamation there.
func WithReleasePacing(bytesPerSec int64) Option {
	return func(o *options) {
		o.releaseBytesPerSec = bytesPerSec
	}
}

// WithLeakCheck enables the leak-check layer. Every live allocation is
// recorded in a side table, double frees and foreign buffers are rejected
// with leak.ErrUnknownPointer, and Stack.Close reports buffers that were
// never freed via a LeakError.
//
// Example:
//
//	stack := memgo.Heap().LeakCheck().MustBuild()
//	buf, _ := stack.Allocate(64)
//	_ = buf // never freed
//	err := stack.Close()
//	// errors.Is(err, memgo.ErrLeaksDetected) == true
func WithLeakCheck() Option {
	return func(o *options) {
		o.leakCheck = true
	}
}

// WithLeakOriginCapture records the call site of every allocation so leak
// reports can say where a leaked buffer came from. Implies WithLeakCheck.
//
// Capturing origins costs a runtime.Caller lookup per allocation; enable
// it in tests and debugging sessions, not on hot paths.
func WithLeakOriginCapture() Option {
	return func(o *options) {
		o.leakCheck = true
		o.leakOrigins = true
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &memgo.BasicMetricsCollector{}
//	stack, _ := memgo.New(memgo.WithMetricsCollector(metrics))
//	// ... use stack ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocs: %d, Bytes: %d\n", stats.AllocCount, stats.BytesRequested)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := memgo.NewJSONLogger(slog.LevelInfo)
//	stack, _ := memgo.New(memgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
