package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a one-shot timer whose Stop is safe to call any number of times,
// before or after it fires.
type Timer struct {
	mu    sync.Mutex
	inner clockwork.Timer
	done  bool
}

// After arms a Timer that calls fn once d has elapsed on c.
func After(c Clock, d time.Duration, fn func()) *Timer {
	t := &Timer{}
	inner := c.AfterFunc(d, func() {
		t.mu.Lock()
		if t.done {
			t.mu.Unlock()
			return
		}
		t.done = true
		t.mu.Unlock()
		fn()
	})

	t.mu.Lock()
	t.inner = inner
	if t.done && inner != nil {
		// Stopped before the underlying timer was assigned.
		inner.Stop()
	}
	t.mu.Unlock()
	return t
}

// Stop cancels the timer. It reports whether this call prevented the timer
// from firing; a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	if t.inner != nil {
		t.inner.Stop()
	}
	return true
}

// stopped reports whether the timer has fired or been stopped.
func (t *Timer) stopped() bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Slot holds at most one outstanding timer. The owner's locker guards the slot:
// Schedule and Cancel must be called with it held, and callbacks run with it
// held. A callback whose timer was replaced or cancelled never runs, even when
// the underlying timer already fired and is waiting on the lock.
type Slot struct {
	clock   Clock
	locker  sync.Locker
	current *Timer
}

// NewSlot returns an empty slot guarded by locker.
func NewSlot(c Clock, locker sync.Locker) *Slot {
	return &Slot{clock: c, locker: locker}
}

// Schedule replaces any outstanding timer with one that runs fn after d.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.current.Stop()

	var t *Timer
	t = After(s.clock, d, func() {
		s.locker.Lock()
		defer s.locker.Unlock()

		if s.current != t {
			return
		}
		s.current = nil
		fn()
	})
	s.current = t
}

// Cancel stops the outstanding timer, if any.
func (s *Slot) Cancel() {
	s.current.Stop()
	s.current = nil
}

// Active reports whether a timer is outstanding.
func (s *Slot) Active() bool {
	return s.current != nil
}
