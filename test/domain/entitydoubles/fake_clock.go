//go:build integration || unit || test

package entitydoubles //nolint:revive,staticcheck // Test package naming follows established project structure

import (
	"sync"
	"time"

	"github.com/rios0rios0/pinbump/internal/domain/entities"
)

// FakeClock implements entities.Clock without sleeping: After advances the
// clock by the requested duration and fires immediately.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

var _ entities.Clock = (*FakeClock)(nil)

// NewFakeClock creates a clock frozen at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)

	fired := make(chan time.Time, 1)
	fired <- c.now
	return fired
}

// Waits returns every duration passed to After.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}
