package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/publisher"
)

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	assert.Error(t, err)
}

func TestConnectSendsConnectionID(t *testing.T) {
	h := newHarness(t, testConfig())
	h.orch.Connect("c0")

	msgs := h.transport.messages("c0", events.TypeConnectSuccess)
	require.Len(t, msgs, 1)
	p := decode[events.ConnectSuccessPayload](t, msgs[0])
	assert.Equal(t, "c0", p.ConnectionID)
	assert.Equal(t, h.clock.Now().UnixMilli(), p.Timestamp)
}

func TestFivePlayerGame(t *testing.T) {
	h := newHarness(t, testConfig())
	conns := []string{"c0", "c1", "c2", "c3", "c4"}
	code := h.lobby(conns...)

	// c0 saw four player:joined events, the last player saw none.
	assert.Equal(t, 4, h.transport.count("c0", events.TypePlayerJoined))
	assert.Zero(t, h.transport.count("c4", events.TypePlayerJoined))

	h.start(code, "c0")

	started := h.transport.messages("c3", events.TypeGameStarted)
	require.Len(t, started, 1)
	gs := decode[events.GameStartedPayload](t, started[0])
	assert.Equal(t, models.DifficultyEasy, gs.Difficulty)
	assert.Len(t, gs.Cities, models.TotalRounds)
	assert.Equal(t, 1, gs.RoundNumber)

	rs := decode[events.RoundStartedPayload](t, h.transport.messages("c3", events.TypeRoundStarted)[0])
	assert.Equal(t, "Paris", rs.CityTarget.Name)
	assert.Equal(t, 30, rs.TimerDuration)
	assert.Equal(t, h.clock.Now().UnixMilli(), rs.StartTime)

	h.playGame(code, conns...)

	for _, c := range conns {
		assert.Equal(t, models.TotalRounds, h.transport.count(c, events.TypeRoundStarted), c)
		assert.Equal(t, models.TotalRounds, h.transport.count(c, events.TypeRoundComplete), c)
		assert.Equal(t, 1, h.transport.count(c, events.TypeGameComplete), c)
	}

	// Four advance countdowns of two ticks each, one final countdown of one tick.
	ticks := h.transport.messages("c1", events.TypeCountdownTick)
	require.Len(t, ticks, 4*2+1)
	first := decode[events.CountdownTickPayload](t, ticks[0])
	assert.Equal(t, events.CountdownTickPayload{RoundNumber: 1, RemainingSeconds: 2}, first)
	last := decode[events.CountdownTickPayload](t, ticks[len(ticks)-1])
	assert.Equal(t, events.CountdownTickPayload{RoundNumber: 5, RemainingSeconds: 1}, last)

	rc := decode[events.RoundCompletePayload](t, h.transport.messages("c2", events.TypeRoundComplete)[2])
	assert.Equal(t, 3, rc.RoundNumber)
	assert.Equal(t, "Lima", rc.TargetCity.Name)
	require.Len(t, rc.Results, 5)
	for _, r := range rc.Results {
		assert.Zero(t, r.Distance)
		assert.False(t, r.AutoSubmitted)
	}

	gc := decode[events.GameCompletePayload](t, h.transport.messages("c0", events.TypeGameComplete)[0])
	require.Len(t, gc.FinalStandings, 5)
	require.NotNil(t, gc.Winner)
	// Every guess was perfect, so standings tie and keep room order.
	assert.Equal(t, "c0", gc.Winner.PlayerID)
	for _, fs := range gc.FinalStandings {
		assert.Equal(t, gc.Winner.TotalScore, fs.TotalScore)
		assert.Len(t, fs.RoundScores, models.TotalRounds)
	}

	room, ok := h.registry.Room(code)
	require.True(t, ok)
	assert.Equal(t, models.RoomStatusFinished, room.Status)

	types := h.sink.types()
	require.NotEmpty(t, types)
	assert.Equal(t, publisher.EventGameStarted, types[0])
	assert.Equal(t, publisher.EventGameCompleted, types[len(types)-1])
	assert.Len(t, types, 1+models.TotalRounds+1)
}

func TestRoundCompletedEventRecordsTiming(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	code := h.lobby("c0", "c1")
	h.start(code, "c0")

	h.advance(4 * time.Second)
	h.guessAll(code, 1, "c0", "c1")
	h.finishRound(cfg.AdvanceCountdown)
	h.waitCount("c0", events.TypeRoundStarted, 2)

	h.advance(30 * time.Second)
	h.waitCount("c0", events.TypeRoundComplete, 2)

	rounds := h.sink.payloads(publisher.EventRoundCompleted)
	require.Len(t, rounds, 2)
	first, ok := rounds[0].(publisher.RoundCompletedPayload)
	require.True(t, ok)
	assert.False(t, first.TimedOut, "everyone guessed")
	assert.Equal(t, int64(4000), first.DurationMs)

	second, ok := rounds[1].(publisher.RoundCompletedPayload)
	require.True(t, ok)
	assert.True(t, second.TimedOut)
	assert.Equal(t, int64(30000), second.DurationMs)
	assert.ElementsMatch(t, []string{"c0", "c1"}, second.AutoSubmitted)
}

func TestGuessAck(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	h.start(code, "c0")

	tokyo := testCities[1].Coordinates()
	a := h.mustSucceed(h.request("c1", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &tokyo}))
	res := decode[events.GuessAcceptedPayload](t, events.Envelope{Data: a.Data})
	assert.Positive(t, res.Distance)
	assert.Positive(t, res.Score)

	guessed := h.transport.messages("c0", events.TypePlayerGuessed)
	require.Len(t, guessed, 1)
	assert.Equal(t, "c1", decode[events.PlayerGuessedPayload](t, guessed[0]).PlayerID)
	assert.Zero(t, h.transport.count("c0", events.TypeRoundComplete))

	again := h.request("c1", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &tokyo})
	h.requireCode(again, models.CodeValidation)

	bad := models.Coordinates{Lat: 91, Lng: 0}
	h.requireCode(h.request("c0", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &bad}), models.CodeValidation)
	h.requireCode(h.request("c0", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code}), models.CodeValidation)
	h.requireCode(h.request("stranger", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &tokyo}), models.CodePlayerNotFound)
}

func TestRoundTimerAutoSubmits(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	h.start(code, "c0")

	paris := testCities[0].Coordinates()
	h.mustSucceed(h.request("c0", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &paris}))

	h.advance(30 * time.Second)
	h.waitCount("c1", events.TypeRoundComplete, 1)

	rc := decode[events.RoundCompletePayload](t, h.transport.messages("c1", events.TypeRoundComplete)[0])
	require.Len(t, rc.Results, 2)
	assert.Equal(t, "c0", rc.Results[0].PlayerID)
	assert.False(t, rc.Results[0].AutoSubmitted)
	assert.Equal(t, "c1", rc.Results[1].PlayerID)
	assert.True(t, rc.Results[1].AutoSubmitted)
	assert.Equal(t, game.AutoSubmitCoordinates, rc.Results[1].Guess)

	// A late guess is rejected once the round is closed.
	late := h.request("c1", events.TypeGuessSubmitted, events.GuessSubmittedRequest{RoomCode: code, Guess: &paris})
	h.requireCode(late, models.CodeValidation)

	h.finishRound(2)
	h.waitCount("c0", events.TypeRoundStarted, 2)
	assert.Equal(t, 1, h.transport.count("c0", events.TypeRoundComplete), "round completes exactly once")
}

func TestRematch(t *testing.T) {
	h := newHarness(t, testConfig())
	conns := []string{"c0", "c1"}
	code := h.lobby(conns...)
	h.start(code, "c0")
	h.playGame(code, conns...)

	h.mustSucceed(h.request("c0", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))
	h.mustSucceed(h.request("c0", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))

	status := decode[events.RematchStatusPayload](t, h.transport.messages("c1", events.TypeRematchStatusUpdated)[1])
	assert.Equal(t, events.RematchStatusPayload{PlayersReady: []string{"c0"}, TotalPlayers: 2}, status)
	assert.Zero(t, h.transport.count("c1", events.TypeRematchCountdownStarted))

	h.mustSucceed(h.request("c1", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))
	h.mustSucceed(h.request("c1", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))
	assert.Equal(t, 1, h.transport.count("c0", events.TypeRematchCountdownStarted), "countdown starts once")
	cd := decode[events.RematchCountdownPayload](t, h.transport.messages("c0", events.TypeRematchCountdownStarted)[0])
	assert.Equal(t, 2, cd.Countdown)

	h.advance(time.Second)
	h.waitCount("c0", events.TypeRematchCountdownTick, 1)
	h.advance(time.Second)
	h.waitCount("c1", events.TypeGameStarted, 2)

	room, ok := h.registry.Room(code)
	require.True(t, ok)
	assert.Equal(t, models.RoomStatusPlaying, room.Status)
	for _, p := range room.Players {
		assert.True(t, p.IsReady)
	}

	// The rematch reuses the previous settings and runs its round timer.
	gs := decode[events.GameStartedPayload](t, h.transport.messages("c1", events.TypeGameStarted)[1])
	assert.Equal(t, models.DifficultyEasy, gs.Difficulty)
	assert.Equal(t, 30, gs.TimerDuration)
	h.waitCount("c1", events.TypeRoundStarted, models.TotalRounds+1)
	h.advance(30 * time.Second)
	h.waitCount("c1", events.TypeRoundComplete, models.TotalRounds+1)
}

func TestRematchRequiresFinishedGame(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")

	h.requireCode(h.request("c0", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}), models.CodeValidation)
	h.requireCode(h.request("c0", events.TypeRematchRequest, events.RematchRequest{RoomCode: "54321"}), models.CodeRoomNotFound)
}

func TestLeavingFinishedRoomTriggersRematch(t *testing.T) {
	h := newHarness(t, testConfig())
	conns := []string{"c0", "c1", "c2"}
	code := h.lobby(conns...)
	h.start(code, "c0")
	h.playGame(code, conns...)

	h.mustSucceed(h.request("c0", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))
	h.mustSucceed(h.request("c1", events.TypeRematchRequest, events.RematchRequest{RoomCode: code}))
	assert.Zero(t, h.transport.count("c0", events.TypeRematchCountdownStarted))

	h.mustSucceed(h.request("c2", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))
	assert.Equal(t, 1, h.transport.count("c0", events.TypeRematchCountdownStarted))
	assert.Zero(t, h.transport.count("c2", events.TypeRematchCountdownStarted))
}

func TestStartGameErrors(t *testing.T) {
	h := newHarness(t, testConfig())

	a := h.mustSucceed(h.request("c0", events.TypeCreateRoom, events.CreateRoomRequest{PlayerName: "Host", MaxPlayers: 2}))
	code := decode[events.RoomPlayerPayload](t, events.Envelope{Data: a.Data}).Room.Code
	h.mustSucceed(h.request("c1", events.TypeJoinRoom, events.JoinRoomRequest{RoomCode: code, PlayerName: "Guest"}))

	start := func(conn string, difficulty models.Difficulty, timer int) testAck {
		return h.request(conn, events.TypeStartGame, events.StartGameRequest{RoomCode: code, Difficulty: difficulty, TimerDuration: timer})
	}

	h.requireCode(start("c1", models.DifficultyEasy, 30), models.CodeUnauthorized)
	h.requireCode(start("c0", models.DifficultyEasy, 30), models.CodeValidation)

	ready := true
	h.mustSucceed(h.request("c0", events.TypePlayerReady, events.PlayerReadyRequest{RoomCode: code, IsReady: &ready}))
	h.mustSucceed(h.request("c1", events.TypePlayerReady, events.PlayerReadyRequest{RoomCode: code, IsReady: &ready}))

	h.requireCode(start("c0", "impossible", 30), models.CodeValidation)
	h.requireCode(start("c0", models.DifficultyEasy, 20), models.CodeValidation)
	h.requireCode(h.request("c0", events.TypeStartGame, events.StartGameRequest{RoomCode: "54321"}), models.CodeRoomNotFound)
	h.requireCode(h.request("c0", events.TypeStartGame, events.StartGameRequest{}), models.CodeValidation)
	assert.Zero(t, h.transport.count("c1", events.TypeGameStarted))

	// Defaults apply when difficulty and timer are omitted.
	h.mustSucceed(h.request("c0", events.TypeStartGame, events.StartGameRequest{RoomCode: code}))
	gs := decode[events.GameStartedPayload](t, h.transport.messages("c1", events.TypeGameStarted)[0])
	assert.Equal(t, models.DifficultyMedium, gs.Difficulty)
	assert.Equal(t, 30, gs.TimerDuration)

	h.requireCode(start("c0", models.DifficultyEasy, 30), models.CodeGameInProgress)
	h.requireCode(h.request("c2", events.TypeJoinRoom, events.JoinRoomRequest{RoomCode: code, PlayerName: "Late"}), models.CodeRoomFull)
}

func TestStartGameNeedsEnoughCities(t *testing.T) {
	h := newHarness(t, testConfig(), func(d *Deps) {
		d.PickCities = func(models.Difficulty, int) []models.City { return testCities[:3] }
	})
	code := h.lobby("c0", "c1")

	h.requireCode(h.request("c0", events.TypeStartGame, events.StartGameRequest{RoomCode: code}), models.CodeInternal)

	room, _ := h.registry.Room(code)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Nil(t, h.games.Get(code))
}

func TestJoinErrors(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0")

	tests := []struct {
		name string
		conn string
		req  events.JoinRoomRequest
		code models.ErrorCode
	}{
		{"missing code", "c1", events.JoinRoomRequest{PlayerName: "A"}, models.CodeValidation},
		{"bad code", "c1", events.JoinRoomRequest{RoomCode: "12ab", PlayerName: "A"}, models.CodeInvalidRoomCode},
		{"unknown room", "c1", events.JoinRoomRequest{RoomCode: "99999", PlayerName: "A"}, models.CodeRoomNotFound},
		{"blank name", "c1", events.JoinRoomRequest{RoomCode: code, PlayerName: "   "}, models.CodeValidation},
		{"already in room", "c0", events.JoinRoomRequest{RoomCode: code, PlayerName: "A"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.requireCode(h.request(tt.conn, events.TypeJoinRoom, tt.req), tt.code)
		})
	}

	h.requireCode(h.request("c1", events.TypeCreateRoom, events.CreateRoomRequest{PlayerName: "A", MaxPlayers: 9}), models.CodeValidation)
}

func TestMalformedAndUnknownMessages(t *testing.T) {
	h := newHarness(t, testConfig())

	h.orch.Handle(context.Background(), "c0", []byte("{not json"))
	h.orch.Handle(context.Background(), "c0", []byte(`{"type":"room:explode","requestId":"r1","data":{}}`))
	h.orch.Handle(context.Background(), "c0", []byte(`{"type":"room:join","requestId":"r2","data":"nope"}`))

	acks := h.transport.messages("c0", events.TypeAck)
	require.Len(t, acks, 3)
	for _, env := range acks {
		a := decode[testAck](t, env)
		assert.False(t, a.Success)
		require.NotNil(t, a.Error)
		assert.Equal(t, models.CodeValidation, a.Error.Code)
	}
	assert.Equal(t, "r1", decode[testAck](t, acks[1]).RequestID)
	assert.Equal(t, events.Type("room:explode"), decode[testAck](t, acks[1]).Event)
}

func TestHandlerPanicBecomesInternalAck(t *testing.T) {
	h := newHarness(t, testConfig(), func(d *Deps) {
		d.PickCities = func(models.Difficulty, int) []models.City { panic("boom") }
	})
	code := h.lobby("c0", "c1")

	h.requireCode(h.request("c0", events.TypeStartGame, events.StartGameRequest{RoomCode: code}), models.CodeInternal)

	// The room lock was released, so the room is still usable.
	ready := false
	h.mustSucceed(h.request("c1", events.TypePlayerReady, events.PlayerReadyRequest{RoomCode: code, IsReady: &ready}))
}

func TestPing(t *testing.T) {
	h := newHarness(t, testConfig())
	h.orch.Handle(context.Background(), "c0", []byte(`{"type":"ping","requestId":"p1","data":{"timestamp":42}}`))

	pongs := h.transport.messages("c0", events.TypePong)
	require.Len(t, pongs, 1)
	assert.Equal(t, "p1", pongs[0].RequestID)
	p := decode[events.PongPayload](t, pongs[0])
	assert.Equal(t, int64(42), p.Timestamp)
	assert.Equal(t, h.clock.Now().UnixMilli(), p.ServerTime)
	assert.Zero(t, h.transport.count("c0", events.TypeAck))
}

func TestServerEventFromClientRejected(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	before, ok := h.registry.Session("c1")
	require.True(t, ok)
	h.clock.Advance(time.Minute)

	a := h.request("c1", events.TypeRoundComplete, map[string]any{"roomCode": code})
	h.requireCode(a, models.CodeValidation)
	assert.Contains(t, a.Error.Message, "not accepted from clients")

	after, ok := h.registry.Session("c1")
	require.True(t, ok)
	assert.Equal(t, before.LastActivityAt, after.LastActivityAt, "rejected frames do not refresh the session")
	assert.Zero(t, h.transport.count("c0", events.TypeRoundComplete))
}

func TestLeaveRoom(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1", "c2")

	h.mustSucceed(h.request("c0", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))

	left := h.transport.messages("c1", events.TypePlayerLeft)
	require.Len(t, left, 1)
	p := decode[events.PlayerLeftPayload](t, left[0])
	assert.Equal(t, "c0", p.PlayerID)
	require.Len(t, p.Room.Players, 2)
	assert.True(t, p.Room.Players[0].IsHost)
	assert.Equal(t, "c1", p.Room.Players[0].ID)
	assert.Zero(t, h.transport.count("c0", events.TypePlayerLeft))

	h.requireCode(h.request("c0", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}), models.CodePlayerNotFound)
	h.requireCode(h.request("c0", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: "99999"}), models.CodeRoomNotFound)

	h.mustSucceed(h.request("c1", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))
	h.mustSucceed(h.request("c2", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))
	_, ok := h.registry.Room(code)
	assert.False(t, ok)
	assert.Zero(t, h.orch.Stats().LockedRooms)
}

func TestLeaveMidGameTearsDownEmptyRoom(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	h.start(code, "c0")

	h.mustSucceed(h.request("c0", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))
	require.NotNil(t, h.games.Get(code), "the game continues for the remaining player")

	h.mustSucceed(h.request("c1", events.TypeLeaveRoom, events.LeaveRoomRequest{RoomCode: code}))
	assert.Nil(t, h.games.Get(code))
	assert.Zero(t, h.orch.Stats().Games.TotalSessions)
}

func TestDisconnectAndRestore(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	h.start(code, "c0")

	h.orch.Disconnect("c1")
	disc := h.transport.messages("c0", events.TypePlayerDisconnected)
	require.Len(t, disc, 1)
	assert.Equal(t, events.PlayerDepartedPayload{PlayerID: "c1", PlayerName: "Player 1"}, decode[events.PlayerDepartedPayload](t, disc[0]))
	_, ok := h.registry.Session("c1")
	assert.True(t, ok, "session survives a disconnect")

	h.requireCode(h.request("c1b", events.TypeRestoreSession, events.RestoreSessionRequest{
		PreviousConnectionID: "c1", RoomCode: "99999",
	}), models.CodeUnauthorized)

	a := h.mustSucceed(h.request("c1b", events.TypeRestoreSession, events.RestoreSessionRequest{
		PreviousConnectionID: "c1", RoomCode: code,
	}))
	restored := decode[events.SessionRestoredPayload](t, events.Envelope{Data: a.Data})
	assert.True(t, restored.Reconnected)
	assert.Equal(t, "c1b", restored.Player.ID)

	// The restored connection plays on under its new id.
	h.guessAll(code, 1, "c0", "c1b")
	h.waitCount("c1b", events.TypeRoundComplete, 1)

	h.requireCode(h.request("c2", events.TypeRestoreSession, events.RestoreSessionRequest{
		PreviousConnectionID: "c1", RoomCode: code,
	}), models.CodeUnauthorized)
}

func TestRestoreOntoConnectionInAnotherRoom(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	other := h.lobby("c9")
	h.orch.Disconnect("c1")

	h.requireCode(h.request("c9", events.TypeRestoreSession, events.RestoreSessionRequest{
		PreviousConnectionID: "c1", RoomCode: code,
	}), models.CodeUnauthorized)

	s, ok := h.registry.Session("c9")
	require.True(t, ok)
	assert.Equal(t, other, s.RoomCode)
	room, ok := h.registry.Room(code)
	require.True(t, ok)
	assert.Equal(t, "c1", room.Players[1].ID, "disconnected player still restorable")
}

func TestDisconnectAfterGame(t *testing.T) {
	h := newHarness(t, testConfig())
	conns := []string{"c0", "c1"}
	code := h.lobby(conns...)
	h.start(code, "c0")
	h.playGame(code, conns...)

	h.orch.Disconnect("c1")
	assert.Equal(t, 1, h.transport.count("c0", events.TypePlayerLeftResults))
	assert.Zero(t, h.transport.count("c0", events.TypePlayerDisconnected))

	h.orch.Disconnect("nobody")
}

func TestSweepExpiresIdlePlayers(t *testing.T) {
	h := newHarness(t, testConfig())
	code := h.lobby("c0", "c1")
	h.lobby("lonely")

	h.clock.Advance(6 * time.Minute)
	h.orch.Handle(context.Background(), "c0", []byte(`{"type":"ping"}`))
	h.orch.Sweep()

	left := h.transport.messages("c0", events.TypePlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "c1", decode[events.PlayerLeftPayload](t, left[0]).PlayerID)

	stats := h.orch.Stats()
	assert.Equal(t, 1, stats.Rooms.Rooms)
	assert.Equal(t, 1, stats.Rooms.Sessions)
	assert.Equal(t, 1, stats.LockedRooms, "only the surviving room keeps lock state")

	room, ok := h.registry.Room(code)
	require.True(t, ok)
	assert.Equal(t, "c0", room.Players[0].ID)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	h.lobby("c0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.orch.RunSweeper(ctx)
		close(done)
	}()

	h.clock.Advance(6 * time.Minute)
	h.advance(cfg.SweepInterval)
	require.Eventually(t, func() bool { return h.orch.Stats().Rooms.Rooms == 0 }, waitFor, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("sweeper did not stop")
	}
}

func TestConcurrentRooms(t *testing.T) {
	h := newHarness(t, testConfig())

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			host, guest := fmt.Sprintf("h%d", i), fmt.Sprintf("g%d", i)
			code := h.lobby(host, guest)
			h.start(code, host)
			if h.games.Get(code) == nil {
				errs <- fmt.Errorf("room %s has no game", code)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, 8, h.orch.Stats().Games.TotalSessions)
}
