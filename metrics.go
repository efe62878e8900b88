package memgo

import (
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocCounter prometheus.Counter
//	    allocBytes   prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordAlloc(size int, err error) {
//	    p.allocCounter.Inc()
//	    p.allocBytes.Add(float64(size))
//	}
type MetricsCollector interface {
	// RecordAlloc is called after each allocation through an instrumented
	// allocator. size is the requested payload size, err is nil if successful.
	RecordAlloc(size int, err error)

	// RecordFree is called after each deallocation. size is the length of
	// the freed slice, err is nil if successful.
	RecordFree(size int, err error)

	// RecordLeakReport is called when a leak report runs, with the number of
	// live allocations and live bytes it found.
	RecordLeakReport(liveAllocs int, liveBytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAlloc(int, error)      {}
func (NoopMetricsCollector) RecordFree(int, error)       {}
func (NoopMetricsCollector) RecordLeakReport(int, int64) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocCount     atomic.Int64
	AllocErrors    atomic.Int64
	BytesRequested atomic.Int64
	FreeCount      atomic.Int64
	FreeErrors     atomic.Int64
	BytesFreed     atomic.Int64
	LeakReports    atomic.Int64
	LeakedAllocs   atomic.Int64
	LeakedBytes    atomic.Int64
}

// RecordAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlloc(size int, err error) {
	b.AllocCount.Add(1)
	if err != nil {
		b.AllocErrors.Add(1)
		return
	}
	b.BytesRequested.Add(int64(size))
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree(size int, err error) {
	b.FreeCount.Add(1)
	if err != nil {
		b.FreeErrors.Add(1)
		return
	}
	b.BytesFreed.Add(int64(size))
}

// RecordLeakReport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLeakReport(liveAllocs int, liveBytes int64) {
	b.LeakReports.Add(1)
	b.LeakedAllocs.Store(int64(liveAllocs))
	b.LeakedBytes.Store(liveBytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocCount:     b.AllocCount.Load(),
		AllocErrors:    b.AllocErrors.Load(),
		BytesRequested: b.BytesRequested.Load(),
		AllocAvgBytes:  b.getAvgAllocBytes(),
		FreeCount:      b.FreeCount.Load(),
		FreeErrors:     b.FreeErrors.Load(),
		BytesFreed:     b.BytesFreed.Load(),
		LeakReports:    b.LeakReports.Load(),
		LeakedAllocs:   b.LeakedAllocs.Load(),
		LeakedBytes:    b.LeakedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAllocBytes() int64 {
	count := b.AllocCount.Load() - b.AllocErrors.Load()
	if count <= 0 {
		return 0
	}
	return b.BytesRequested.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocCount     int64
	AllocErrors    int64
	BytesRequested int64
	AllocAvgBytes  int64
	FreeCount      int64
	FreeErrors     int64
	BytesFreed     int64
	LeakReports    int64
	LeakedAllocs   int64
	LeakedBytes    int64
}
