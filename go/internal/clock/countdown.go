package clock

import (
	"sync"
	"time"
)

// Countdown ticks once per second from a starting value down to zero. It shares
// the locking contract of Slot: Start and Stop are called with the locker held
// and the callbacks run with it held.
type Countdown struct {
	slot      *Slot
	interval  time.Duration
	remaining int
}

// NewCountdown returns a stopped countdown guarded by locker.
func NewCountdown(c Clock, locker sync.Locker) *Countdown {
	return &Countdown{
		slot:     NewSlot(c, locker),
		interval: time.Second,
	}
}

// Start cancels any running countdown and begins a new one. onTick is called
// immediately with from, then once per second with each remaining value above
// zero. onDone is called when the count reaches zero.
func (c *Countdown) Start(from int, onTick func(remaining int), onDone func()) {
	c.slot.Cancel()
	c.remaining = from
	if from <= 0 {
		onDone()
		return
	}
	onTick(from)
	c.arm(onTick, onDone)
}

func (c *Countdown) arm(onTick func(int), onDone func()) {
	c.slot.Schedule(c.interval, func() {
		c.remaining--
		if c.remaining > 0 {
			onTick(c.remaining)
			c.arm(onTick, onDone)
			return
		}
		onDone()
	})
}

// Stop cancels the countdown without calling onDone.
func (c *Countdown) Stop() {
	c.slot.Cancel()
}

// Active reports whether the countdown is still running.
func (c *Countdown) Active() bool {
	return c.slot.Active()
}

// Remaining returns the last value the countdown reached.
func (c *Countdown) Remaining() int {
	return c.remaining
}
