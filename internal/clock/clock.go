// Package clock provides the time source shared by the camera, motion and
// notification services. It reuses the ratelimit.Clock contract so the same
// value can drive token buckets.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

type Clock = ratelimit.Clock

var (
	_ Clock = Real{}
	_ Clock = (*Manual)(nil)
)

// Real implements Clock in terms of standard time functions.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// Manual is a Clock that only moves when slept on or advanced. Safe for
// concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Sleep(d time.Duration) {
	m.Advance(d)
}

func (m *Manual) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// SleepContext sleeps for d on c, returning early with ctx.Err() when ctx
// is cancelled. Non-real clocks sleep immediately and then report ctx.
func SleepContext(ctx context.Context, c Clock, d time.Duration) error {
	if _, ok := c.(Real); !ok {
		c.Sleep(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
