package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for an allocator stack.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// ReleaseBytesPerSec paces how fast bulk reclaim operations hand
	// memory back to the OS. If 0, unpaced. When set, it should be at
	// least the arena chunk size, otherwise pacing degrades to
	// immediate release.
	ReleaseBytesPerSec int64
}

// Controller manages a memory budget shared by every allocator in a stack.
// A nil *Controller enforces nothing, so optional wiring needs no nil
// checks at the call sites.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	releaseLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		cfg: cfg,
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.ReleaseBytesPerSec > 0 {
		c.releaseLimiter = rate.NewLimiter(rate.Limit(cfg.ReleaseBytesPerSec), int(cfg.ReleaseBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory. If a hard limit is configured
// and usage would exceed it, this blocks until memory is available or ctx
// is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)

	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)

	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.memUsed.Load()
}

// MemoryLimit returns the configured hard limit, or 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}

	return c.cfg.MemoryLimitBytes
}

// ReleaseLimiter returns the limiter pacing bulk memory returns, or nil
// when unpaced. Pass it to arena.WithReleaseLimiter to throttle Purge.
func (c *Controller) ReleaseLimiter() *rate.Limiter {
	if c == nil {
		return nil
	}

	return c.releaseLimiter
}
