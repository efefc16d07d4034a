package executor

import (
	"sync"
	"time"
)

// DefaultCooldown is the per-symbol quiet period after an order.
const DefaultCooldown = 300 * time.Second

// Cooldown suppresses new evaluations for a symbol until its deadline
// passes. Deadlines carry a monotonic clock reading, so wall-clock jumps do
// not shorten or extend them. It is safe for concurrent use.
type Cooldown struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	period    time.Duration
	now       func() time.Time
}

// NewCooldown creates a Cooldown. A non-positive period selects DefaultCooldown.
func NewCooldown(period time.Duration) *Cooldown {
	if period <= 0 {
		period = DefaultCooldown
	}
	return &Cooldown{
		deadlines: make(map[string]time.Time),
		period:    period,
		now:       time.Now,
	}
}

// Active reports whether symbol is cooling down and how long remains.
func (c *Cooldown) Active(symbol string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.deadlines[symbol]
	if !ok {
		return false, 0
	}
	if left := until.Sub(c.now()); left > 0 {
		return true, left
	}
	return false, 0
}

// Start (re)arms the cooldown for symbol.
func (c *Cooldown) Start(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines[symbol] = c.now().Add(c.period)
}

// Cleanup drops expired deadlines.
func (c *Cooldown) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for sym, until := range c.deadlines {
		if !now.Before(until) {
			delete(c.deadlines, sym)
		}
	}
}

func (c *Cooldown) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deadlines)
}
