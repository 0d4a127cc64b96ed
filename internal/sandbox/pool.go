package sandbox

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"cvix/internal/generr"
)

// Pool sizing bounds.
const (
	MinSlots = 1
	// MaxSlots caps concurrent TeX engines, each of which can take several
	// hundred MB of memory.
	MaxSlots = 8

	cpuDivisor = 2
)

// ResolveSlots returns n when positive, otherwise GOMAXPROCS/2 clamped to
// [MinSlots, MaxSlots].
func ResolveSlots(n int) int {
	if n > 0 {
		return n
	}
	n = runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinSlots {
		return MinSlots
	}
	if n > MaxSlots {
		return MaxSlots
	}
	return n
}

// SlotPool bounds how many compilations run at once, independently of how
// many requests the HTTP server accepts.
type SlotPool struct {
	inner Compiler
	sem   *semaphore.Weighted
	size  int
	wait  time.Duration
	inUse prometheus.Gauge
}

// PoolOptions configures a SlotPool.
type PoolOptions struct {
	Slots int
	// QueueWait is how long a request may wait for a slot. Zero fails fast.
	QueueWait time.Duration
	// InUse, when set, tracks occupied slots.
	InUse prometheus.Gauge
}

func NewSlotPool(inner Compiler, opts PoolOptions) *SlotPool {
	size := ResolveSlots(opts.Slots)
	return &SlotPool{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(size)),
		size:  size,
		wait:  opts.QueueWait,
		inUse: opts.InUse,
	}
}

// Size returns the number of slots.
func (p *SlotPool) Size() int { return p.size }

// Compile waits for a free slot, then delegates to the wrapped compiler.
func (p *SlotPool) Compile(ctx context.Context, source string) ([]byte, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	return p.inner.Compile(ctx, source)
}

func (p *SlotPool) acquire(ctx context.Context) error {
	if p.wait <= 0 {
		if err := ctx.Err(); err != nil {
			return generr.Context(err).WithOp("sandbox.acquire")
		}
		if !p.sem.TryAcquire(1) {
			return generr.Timeout("no compiler slot available", nil).WithOp("sandbox.acquire")
		}
		p.track(1)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.wait)
	defer cancel()
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return generr.Canceled(ctx.Err()).WithOp("sandbox.acquire")
		}
		return generr.Timeout("no compiler slot became available", err).WithOp("sandbox.acquire")
	}
	p.track(1)
	return nil
}

func (p *SlotPool) release() {
	p.sem.Release(1)
	p.track(-1)
}

func (p *SlotPool) track(delta float64) {
	if p.inUse != nil {
		p.inUse.Add(delta)
	}
}
