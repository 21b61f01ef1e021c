package orchestrator

import (
	"sync"

	"github.com/mcdev12/geoquest/go/internal/clock"
)

// roomState is the per-room lock and the countdowns that run under it.
type roomState struct {
	mu   sync.Mutex
	refs int

	advance *clock.Countdown
	rematch *clock.Countdown
}

// roomTable hands out one roomState per room code. Entries are refcounted and
// dropped once the room no longer exists and nobody holds them.
type roomTable struct {
	clock clock.Clock

	mu    sync.Mutex
	rooms map[string]*roomState
}

func newRoomTable(c clock.Clock) *roomTable {
	return &roomTable{clock: c, rooms: make(map[string]*roomState)}
}

// acquire returns the room's state with its lock held.
func (t *roomTable) acquire(code string) *roomState {
	t.mu.Lock()
	st, ok := t.rooms[code]
	if !ok {
		st = &roomState{}
		st.advance = clock.NewCountdown(t.clock, &st.mu)
		st.rematch = clock.NewCountdown(t.clock, &st.mu)
		t.rooms[code] = st
	}
	st.refs++
	t.mu.Unlock()

	st.mu.Lock()
	return st
}

// release unlocks the room. roomExists is evaluated while the lock is still held.
func (t *roomTable) release(code string, st *roomState, roomExists func(string) bool) {
	exists := roomExists(code)
	st.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	st.refs--
	if st.refs == 0 && !exists && t.rooms[code] == st {
		delete(t.rooms, code)
	}
}

func (t *roomTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
