package backoff

import (
	"sync"
	"time"
)

// Cursor walks a Strategy one attempt at a time. The poll scheduler
// advances it after each non-terminal observation and resets it to the
// floor when a push notification arrives, so the pushed state is
// confirmed quickly.
//
// Cursor is safe for concurrent use: Reset is called from the
// notification delivery goroutine while Next runs on the poll loop.
type Cursor struct {
	mu       sync.Mutex
	strategy Strategy
	attempt  int
}

// NewCursor creates a cursor positioned before the first attempt.
func NewCursor(s Strategy) *Cursor {
	if s == nil {
		s = DefaultStrategy()
	}
	return &Cursor{strategy: s}
}

// Next returns the delay for the current attempt and advances the
// cursor. The first call returns Delay(1).
func (c *Cursor) Next() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	return c.strategy.Delay(c.attempt)
}

// Current returns the delay the next call to Next will produce, without
// advancing.
func (c *Cursor) Current() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategy.Delay(c.attempt + 1)
}

// Reset rewinds the cursor so the next delay is the strategy's floor.
func (c *Cursor) Reset() {
	c.mu.Lock()
	c.attempt = 0
	c.mu.Unlock()
}
