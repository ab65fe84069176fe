package persist

import (
	"sync"
	"time"
)

// VersionClock hands out save versions. A version is the clock in epoch
// milliseconds, bumped by one whenever the clock did not move past the
// previous version or the base it replaces.
type VersionClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewVersionClock(now func() time.Time) *VersionClock {
	if now == nil {
		now = time.Now
	}
	return &VersionClock{now: now}
}

// Next returns a version strictly greater than base and every version
// returned before.
func (c *VersionClock) Next(base int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.now().UnixMilli()
	floor := max(base, c.last)
	if v <= floor {
		v = floor + 1
	}
	c.last = v
	return v
}
