package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/publisher"
	"github.com/mcdev12/geoquest/go/internal/rooms"
)

const waitFor = 2 * time.Second

var testCities = []models.City{
	{Name: "Paris", Country: "France", Latitude: 48.8566, Longitude: 2.3522, Tier: 1},
	{Name: "Tokyo", Country: "Japan", Latitude: 35.6762, Longitude: 139.6503, Tier: 1},
	{Name: "Lima", Country: "Peru", Latitude: -12.0464, Longitude: -77.0428, Tier: 2},
	{Name: "Nairobi", Country: "Kenya", Latitude: -1.2921, Longitude: 36.8219, Tier: 2},
	{Name: "Reykjavik", Country: "Iceland", Latitude: 64.1466, Longitude: -21.9426, Tier: 3},
}

func firstCities(_ models.Difficulty, n int) []models.City {
	return testCities[:min(n, len(testCities))]
}

// fakeTransport records every frame delivered to each connection.
type fakeTransport struct {
	mu     sync.Mutex
	groups map[string]map[string]bool
	inbox  map[string][]events.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		groups: make(map[string]map[string]bool),
		inbox:  make(map[string][]events.Envelope),
	}
}

func (f *fakeTransport) deliverLocked(connectionID string, msg []byte) {
	var env events.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		panic(err)
	}
	f.inbox[connectionID] = append(f.inbox[connectionID], env)
}

func (f *fakeTransport) Send(connectionID string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliverLocked(connectionID, msg)
}

func (f *fakeTransport) Broadcast(group string, msg []byte) {
	f.BroadcastExcept(group, "", msg)
}

func (f *fakeTransport) BroadcastExcept(group, exceptID string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.groups[group] {
		if id != exceptID {
			f.deliverLocked(id, msg)
		}
	}
}

func (f *fakeTransport) JoinGroup(connectionID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groups[group] == nil {
		f.groups[group] = make(map[string]bool)
	}
	f.groups[group][connectionID] = true
}

func (f *fakeTransport) LeaveGroup(connectionID, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[group], connectionID)
}

func (f *fakeTransport) messages(connectionID string, t events.Type) []events.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Envelope
	for _, env := range f.inbox[connectionID] {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeTransport) count(connectionID string, t events.Type) int {
	return len(f.messages(connectionID, t))
}

// recordingSink collects published lifecycle events.
type recordingSink struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (s *recordingSink) Enqueue(e publisher.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return true
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func (s *recordingSink) payloads(eventType string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e.Payload)
		}
	}
	return out
}

type testAck struct {
	RequestID string          `json:"requestId"`
	Event     events.Type     `json:"event"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *models.Error   `json:"error"`
}

type harness struct {
	t         *testing.T
	orch      *Orchestrator
	transport *fakeTransport
	clock     *clockwork.FakeClock
	registry  *rooms.Registry
	games     *game.Manager
	sink      *recordingSink

	mu     sync.Mutex
	nextID int
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AdvanceCountdown = 2
	cfg.FinalCountdown = 1
	cfg.RematchCountdown = 2
	return cfg
}

func newHarness(t *testing.T, cfg Config, mutate ...func(*Deps)) *harness {
	t.Helper()
	fc := clockwork.NewFakeClock()
	h := &harness{
		t:         t,
		transport: newFakeTransport(),
		clock:     fc,
		registry:  rooms.NewRegistry(fc, rooms.DefaultConfig()),
		games:     game.NewManager(),
		sink:      &recordingSink{},
	}
	deps := Deps{
		Registry:   h.registry,
		Games:      h.games,
		Transport:  h.transport,
		Clock:      fc,
		PickCities: firstCities,
		Events:     h.sink,
	}
	for _, m := range mutate {
		m(&deps)
	}
	orch, err := New(cfg, deps)
	require.NoError(t, err)
	h.orch = orch
	return h
}

// request sends a request frame and returns its ack.
func (h *harness) request(connectionID string, t events.Type, data any) testAck {
	h.t.Helper()
	h.mu.Lock()
	h.nextID++
	reqID := "req-" + strconv.Itoa(h.nextID)
	h.mu.Unlock()

	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	frame, err := json.Marshal(events.Envelope{Type: t, RequestID: reqID, Data: raw})
	require.NoError(h.t, err)

	h.orch.Handle(context.Background(), connectionID, frame)
	return h.ackFor(connectionID, reqID)
}

func (h *harness) ackFor(connectionID, reqID string) testAck {
	h.t.Helper()
	var found []testAck
	for _, env := range h.transport.messages(connectionID, events.TypeAck) {
		var a testAck
		require.NoError(h.t, json.Unmarshal(env.Data, &a))
		if a.RequestID == reqID {
			found = append(found, a)
		}
	}
	require.Len(h.t, found, 1, "exactly one ack for %s", reqID)
	return found[0]
}

func (h *harness) mustSucceed(a testAck) testAck {
	h.t.Helper()
	require.True(h.t, a.Success, "%s failed: %+v", a.Event, a.Error)
	return a
}

func (h *harness) requireCode(a testAck, code models.ErrorCode) {
	h.t.Helper()
	require.False(h.t, a.Success)
	require.NotNil(h.t, a.Error)
	require.Equal(h.t, code, a.Error.Code, a.Error.Message)
}

// advance waits for one pending timer and moves the fake clock.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(h.t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(d)
}

func (h *harness) waitCount(connectionID string, t events.Type, n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.transport.count(connectionID, t) >= n },
		waitFor, time.Millisecond, "waiting for %d %s on %s", n, t, connectionID)
}

// lobby creates a room hosted by conns[0] with everyone joined and ready.
func (h *harness) lobby(conns ...string) string {
	h.t.Helper()
	a := h.mustSucceed(h.request(conns[0], events.TypeCreateRoom, events.CreateRoomRequest{PlayerName: "Host"}))
	var created events.RoomPlayerPayload
	require.NoError(h.t, json.Unmarshal(a.Data, &created))
	code := created.Room.Code

	for i, c := range conns[1:] {
		h.mustSucceed(h.request(c, events.TypeJoinRoom, events.JoinRoomRequest{
			RoomCode: code, PlayerName: fmt.Sprintf("Player %d", i+1),
		}))
	}
	ready := true
	for _, c := range conns {
		h.mustSucceed(h.request(c, events.TypePlayerReady, events.PlayerReadyRequest{RoomCode: code, IsReady: &ready}))
	}
	return code
}

func (h *harness) start(code, host string) {
	h.t.Helper()
	h.mustSucceed(h.request(host, events.TypeStartGame, events.StartGameRequest{
		RoomCode: code, Difficulty: models.DifficultyEasy, TimerDuration: 30,
	}))
}

// guessAll has every connection guess the current city exactly.
func (h *harness) guessAll(code string, round int, conns ...string) {
	h.t.Helper()
	city := testCities[round-1].Coordinates()
	for _, c := range conns {
		h.mustSucceed(h.request(c, events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &city}))
	}
}

// finishRound steps the post-round countdown to zero.
func (h *harness) finishRound(countdown int) {
	h.t.Helper()
	for i := 0; i < countdown; i++ {
		h.advance(time.Second)
	}
}

// playGame plays all rounds of a game whose first round has started, with
// perfect guesses, and waits for game:complete.
func (h *harness) playGame(code string, conns ...string) {
	h.t.Helper()
	completes := h.transport.count(conns[0], events.TypeGameComplete)
	earlier := h.transport.count(conns[0], events.TypeRoundStarted) - 1
	for round := 1; round <= models.TotalRounds; round++ {
		h.waitCount(conns[0], events.TypeRoundStarted, earlier+round)
		h.guessAll(code, round, conns...)
		if round == models.TotalRounds {
			h.finishRound(h.orch.cfg.FinalCountdown)
		} else {
			h.finishRound(h.orch.cfg.AdvanceCountdown)
		}
	}
	h.waitCount(conns[0], events.TypeGameComplete, completes+1)
}

func decode[T any](t *testing.T, env events.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}
