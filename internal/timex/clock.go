// Package timex holds the time primitives every expiry decision goes through.
// All instants handed out by this package are UTC; conversion to local time
// belongs to presentation code only.
package timex

import (
	"sync"
	"time"
)

// Clock is the source of "now" for token issuance and expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock and normalizes it to UTC.
type SystemClock struct{}

// Now returns the current instant in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ManualClock is a Clock that only moves when told to. Safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at t (converted to UTC).
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// IsExpired reports whether an instant with the given expiry is past at now.
// The comparison is strict: the expiry instant itself is still valid.
func IsExpired(now, expiresAt time.Time) bool {
	return now.After(expiresAt)
}

// ToUnix encodes t as Unix-epoch seconds.
func ToUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

// FromUnix decodes Unix-epoch seconds into a UTC instant.
func FromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// Remaining returns how long until expiresAt, or zero when already expired.
func Remaining(now, expiresAt time.Time) time.Duration {
	if d := expiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
