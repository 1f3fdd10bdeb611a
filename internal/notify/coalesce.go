package notify

import (
	"sync"
	"time"
)

const DefaultCoalesceWindow = 500 * time.Millisecond

// Coalescer turns a burst of triggers into a single call.  The first
// trigger arms a timer; triggers before it fires are absorbed, so fn runs
// at most once per window and never later than one window after a change.
type Coalescer struct {
	window time.Duration
	fn     func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewCoalescer(window time.Duration, fn func()) *Coalescer {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	return &Coalescer{window: window, fn: fn}
}

func (c *Coalescer) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.window, c.fire)
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	c.timer = nil
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped {
		c.fn()
	}
}

// Stop cancels a pending call.  Triggers after Stop are ignored.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
