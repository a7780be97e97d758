package assessment

import (
	"context"
	"math"
	"sync"
	"time"
)

// Clock is a whole-second countdown. It fires onExpire once when it reaches
// zero and can be stopped exactly once; a stopped clock ignores ticks.
type Clock struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	onExpire  func()
	interval  time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithInterval sets the real time between ticks driven by Start. The
// countdown still moves one second per tick.
func WithInterval(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewClock creates a countdown of total, rounded up to whole seconds. It
// does not move until Start or Tick is called.
func NewClock(total time.Duration, onExpire func(), opts ...ClockOption) *Clock {
	c := &Clock{
		remaining: int(math.Ceil(total.Seconds())),
		onExpire:  onExpire,
		interval:  time.Second,
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start ticks the clock from a background goroutine until it expires, is
// stopped, or ctx is cancelled. Cancelling ctx stops the clock.
func (c *Clock) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				c.Stop()
				return
			case <-c.done:
				return
			case <-t.C:
				c.Tick()
			}
		}
	}()
}

// Tick advances the countdown by one second and returns the remaining
// seconds. Reaching zero stops the clock and calls onExpire.
func (c *Clock) Tick() int {
	c.mu.Lock()
	if c.stopped || c.remaining <= 0 {
		r := c.remaining
		c.mu.Unlock()
		return r
	}
	c.remaining--
	r := c.remaining
	c.mu.Unlock()

	if r == 0 && c.Stop() && c.onExpire != nil {
		c.onExpire()
	}
	return r
}

// Stop halts the clock. It reports true only for the call that actually
// stopped it, including the internal stop on expiry.
func (c *Clock) Stop() bool {
	stopped := false
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.done)
		stopped = true
	})
	return stopped
}

// Remaining returns the seconds left.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stopped reports whether the clock has been stopped or expired.
func (c *Clock) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
