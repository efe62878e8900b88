package tracking

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/memgo/internal/conv"
)

// HeaderSize is the number of bytes the tracking layer prepends to every
// allocation. The header stores the total block size (header included) as a
// little-endian uint64, so Free can recover the original request without a
// side table.
const HeaderSize = 8

// Upstream is the allocator the tracking layer delegates to. The memgo
// Allocator interface satisfies it.
type Upstream interface {
	Allocate(size int) ([]byte, error)
	Free(buf []byte) error
}

// Allocator wraps an upstream byte allocator and keeps live allocation
// statistics. Every block it hands out is prefixed with a HeaderSize byte
// header holding the total block size; the reported statistics include that
// header.
//
// An Allocator is not safe for concurrent use.
type Allocator struct {
	upstream   Upstream
	allocCount int64
	totalBytes int64
}

// New creates a tracking allocator on top of upstream.
func New(upstream Upstream) *Allocator {
	return &Allocator{upstream: upstream}
}

// Allocate requests size payload bytes. It asks the upstream for
// size+HeaderSize bytes, records the total in the header and returns the
// payload portion.
//
// size <= 0 returns (nil, nil) without touching the upstream. Upstream
// failures are returned unchanged and leave the statistics untouched.
func (a *Allocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	if size > math.MaxInt-HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrAllocationTooLarge, size)
	}

	total := size + HeaderSize

	block, err := a.upstream.Allocate(total)
	if err != nil {
		return nil, err
	}

	totalU, err := conv.IntToUint64(total)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(block[:HeaderSize], totalU)

	a.allocCount++
	a.totalBytes += int64(total)

	return block[HeaderSize:total:total], nil
}

// Free returns a block obtained from Allocate. It walks back to the header,
// validates it against the payload length and hands the full block to the
// upstream.
//
// buf must be exactly the slice returned by Allocate; a re-sliced or
// foreign buffer fails with ErrCorruptHeader. A nil or empty buf is a
// no-op. Upstream failures are returned unchanged and leave the statistics
// untouched.
func (a *Allocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	base := unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), -HeaderSize) //nolint:gosec // walk back to the header written by Allocate
	header := unsafe.Slice((*byte)(base), HeaderSize)                      //nolint:gosec // header precedes the payload in the same block

	totalU := binary.LittleEndian.Uint64(header)

	total, err := conv.Uint64ToInt(totalU)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if total != len(buf)+HeaderSize {
		return fmt.Errorf("%w: header claims %d bytes, payload has %d", ErrCorruptHeader, total, len(buf))
	}

	block := unsafe.Slice((*byte)(base), total) //nolint:gosec // total was validated against the payload length

	if err := a.upstream.Free(block); err != nil {
		return err
	}

	a.allocCount--
	a.totalBytes -= int64(total)

	return nil
}

// Reset zeroes the live counters. Call it only after the upstream has
// reclaimed every outstanding block in bulk, e.g. an arena purge; the
// counters would otherwise keep counting buffers that no longer exist.
func (a *Allocator) Reset() {
	a.allocCount = 0
	a.totalBytes = 0
}

// AllocationCount returns the number of live allocations.
func (a *Allocator) AllocationCount() int64 {
	return a.allocCount
}

// TotalBytes returns the bytes currently held by live allocations, headers
// included.
func (a *Allocator) TotalBytes() int64 {
	return a.totalBytes
}

// Stats returns a point-in-time snapshot of the live allocation counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		AllocationCount: a.allocCount,
		TotalBytes:      a.totalBytes,
	}
}

// Stats is a snapshot of the live allocation counters.
type Stats struct {
	AllocationCount int64
	TotalBytes      int64
}

// String implements the fmt.Stringer interface.
func (s Stats) String() string {
	return fmt.Sprintf("Tracking{allocations: %d, bytes: %d}", s.AllocationCount, s.TotalBytes)
}
