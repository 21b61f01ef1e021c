// Package clock is the timer service used by the room coordinator. Every timer
// goes through a Clock so tests can drive time with a clockwork.FakeClock.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// Every calls fn once per interval until ctx is cancelled. It blocks, so run it
// in its own goroutine.
func Every(ctx context.Context, c Clock, interval time.Duration, fn func()) {
	ticker := c.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn()
		}
	}
}
