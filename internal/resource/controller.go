package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Limits holds resource limits. Zero values mean unlimited, except
// MaxBackgroundWorkers which defaults to 1.
type Limits struct {
	// MaxBackgroundWorkers is the maximum number of concurrent compactions and flushes.
	MaxBackgroundWorkers int64

	// IOBytesPerSec is the maximum snapshot write throughput.
	IOBytesPerSec int64

	// MemoryBytes bounds the encoded snapshot buffers held at once.
	MemoryBytes int64
}

// Controller manages the resources shared by a client's background work.
// A nil *Controller imposes no limits.
type Controller struct {
	limits Limits

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	bgSem    *semaphore.Weighted
	bgActive atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(limits Limits) *Controller {
	if limits.MaxBackgroundWorkers <= 0 {
		limits.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		limits: limits,
		bgSem:  semaphore.NewWeighted(limits.MaxBackgroundWorkers),
	}

	if limits.MemoryBytes > 0 {
		c.memSem = semaphore.NewWeighted(limits.MemoryBytes)
	}

	if limits.IOBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(limits.IOBytesPerSec), int(limits.IOBytesPerSec))
	}

	return c
}

// Limits returns the effective limits.
func (c *Controller) Limits() Limits {
	if c == nil {
		return Limits{}
	}
	return c.limits
}

// AcquireMemory attempts to reserve memory.
// Non-blocking: returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
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

// AcquireBackground reserves a background worker slot.
// Blocks until a slot is free or ctx is done.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.bgSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.bgActive.Add(1)
	return nil
}

// TryAcquireBackground attempts to reserve a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	if !c.bgSem.TryAcquire(1) {
		return false
	}
	c.bgActive.Add(1)
	return true
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgActive.Add(-1)
	c.bgSem.Release(1)
}

// BackgroundActive returns the number of held background slots.
func (c *Controller) BackgroundActive() int64 {
	if c == nil {
		return 0
	}
	return c.bgActive.Load()
}

// RunBackground runs fn while holding a background slot.
func (c *Controller) RunBackground(ctx context.Context, fn func(context.Context) error) error {
	if err := c.AcquireBackground(ctx); err != nil {
		return err
	}
	defer c.ReleaseBackground()

	return fn(ctx)
}

// AcquireIO waits until the IO limit allows bytes.
// Requests larger than one second of budget are split into burst-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
