package failsafe

// controller.go - pull fallback for the push feed.
//
// While at least one reason is raised the controller polls the marketplace
// every Interval and feeds the result through the normal update path. The
// loop re-checks the active flag under the lock before every iteration, so
// clearing the last reason stops it at the next boundary and a new Raise
// either finds the loop still alive or starts a fresh one. Never two.

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reason is why the push feed cannot be trusted.
type Reason string

const (
	// ReasonNoFeed: the process runs without a push feed.
	ReasonNoFeed Reason = "no_feed"
	// ReasonFeedDown: the feed connection failed or dropped.
	ReasonFeedDown Reason = "feed_down"
)

// DefaultInterval is the pause between two polls.
const DefaultInterval = time.Second

// PollFunc pulls fresh ladders for every collection and returns once the
// passes it started have finished.
type PollFunc func(ctx context.Context)

// Controller owns the failsafe state and its poll loop.
type Controller struct {
	poll     PollFunc
	interval time.Duration

	mu        sync.Mutex
	ctx       context.Context
	reasons   map[Reason]bool
	active    bool
	loopAlive bool
	listeners []func(active bool)

	wg sync.WaitGroup
}

// New creates an idle controller. ctx bounds every poll loop it starts.
func New(ctx context.Context, poll PollFunc, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		poll:     poll,
		interval: interval,
		ctx:      ctx,
		reasons:  make(map[Reason]bool),
	}
}

// Subscribe registers fn to be called on every activation change.
func (c *Controller) Subscribe(fn func(active bool)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Raise sets reason. The first raise of a reason is logged unless silent.
func (c *Controller) Raise(reason Reason, msg string, silent bool) {
	c.mu.Lock()
	if !c.reasons[reason] && !silent {
		slog.Error("failsafe: started", "reason", reason, "msg", msg)
	}
	c.reasons[reason] = true
	changed := !c.active
	c.active = true
	start := !c.loopAlive
	if start {
		c.loopAlive = true
		c.wg.Add(1)
	}
	listeners := c.listeners
	c.mu.Unlock()

	if start {
		go c.loop()
	}
	if changed {
		notify(listeners, true)
	}
}

// Clear unsets reason. The failsafe stops once no reason is left.
func (c *Controller) Clear(reason Reason) {
	c.mu.Lock()
	if !c.reasons[reason] {
		c.mu.Unlock()
		return
	}
	slog.Error("failsafe: stopped", "reason", reason)
	delete(c.reasons, reason)
	changed := false
	if c.active && len(c.reasons) == 0 {
		c.active = false
		changed = true
	}
	listeners := c.listeners
	c.mu.Unlock()

	if changed {
		notify(listeners, false)
	}
}

// Active reports whether any reason is raised.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Reasons returns the raised reasons.
func (c *Controller) Reasons() []Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Reason, 0, len(c.reasons))
	for r := range c.reasons {
		out = append(out, r)
	}
	return out
}

// Wait blocks until the poll loop, if any, has exited.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		if !c.continueLoop() {
			return
		}
		slog.Debug("failsafe: polling")
		c.poll(c.ctx)

		if !c.continueLoop() {
			return
		}
		select {
		case <-c.ctx.Done():
			c.mu.Lock()
			c.loopAlive = false
			c.mu.Unlock()
			return
		case <-time.After(c.interval):
		}
	}
}

// continueLoop reports whether the loop should keep going and marks it dead
// otherwise, atomically with the active check.
func (c *Controller) continueLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active && c.ctx.Err() == nil {
		return true
	}
	c.loopAlive = false
	return false
}

func notify(listeners []func(bool), active bool) {
	for _, fn := range listeners {
		fn(active)
	}
}
