// Package orchestrator turns client intents and timer expirations into room
// and game state transitions, and fans the results out to connections.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/cities"
	"github.com/mcdev12/geoquest/go/internal/clock"
	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/publisher"
	"github.com/mcdev12/geoquest/go/internal/rooms"
	"github.com/mcdev12/geoquest/go/internal/scoring"
)

// Transport delivers encoded frames. Sends never block; a slow connection is
// the transport's problem.
type Transport interface {
	Send(connectionID string, msg []byte)
	Broadcast(group string, msg []byte)
	BroadcastExcept(group, exceptID string, msg []byte)
	JoinGroup(connectionID, group string)
	LeaveGroup(connectionID, group string)
}

// EventSink accepts lifecycle events for publishing without blocking.
type EventSink interface {
	Enqueue(event publisher.Event) bool
}

// Config holds the game rules the orchestrator enforces.
type Config struct {
	AllowedTimers     []int
	DefaultTimer      int
	DefaultDifficulty models.Difficulty
	AdvanceCountdown  int
	FinalCountdown    int
	RematchCountdown  int
	SweepInterval     time.Duration
	MaxNameLength     int
}

func DefaultConfig() Config {
	return Config{
		AllowedTimers:     []int{15, 30, 45, 60},
		DefaultTimer:      30,
		DefaultDifficulty: models.DifficultyMedium,
		AdvanceCountdown:  10,
		FinalCountdown:    5,
		RematchCountdown:  10,
		SweepInterval:     time.Minute,
		MaxNameLength:     32,
	}
}

// Deps are the orchestrator's collaborators. Events, Distance and Score are optional.
type Deps struct {
	Registry   *rooms.Registry
	Games      *game.Manager
	Transport  Transport
	Clock      clock.Clock
	PickCities cities.PickFunc
	Distance   scoring.DistanceFunc
	Score      scoring.ScoreFunc
	Events     EventSink
}

type Orchestrator struct {
	cfg        Config
	registry   *rooms.Registry
	games      *game.Manager
	transport  Transport
	clock      clock.Clock
	pickCities cities.PickFunc
	distance   scoring.DistanceFunc
	score      scoring.ScoreFunc
	events     EventSink

	locks *roomTable
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Games == nil || deps.Transport == nil || deps.Clock == nil || deps.PickCities == nil {
		return nil, fmt.Errorf("orchestrator: registry, games, transport, clock and city picker are required")
	}
	if deps.Distance == nil {
		deps.Distance = scoring.Distance
	}
	if deps.Score == nil {
		deps.Score = scoring.Score
	}
	return &Orchestrator{
		cfg:        cfg,
		registry:   deps.Registry,
		games:      deps.Games,
		transport:  deps.Transport,
		clock:      deps.Clock,
		pickCities: deps.PickCities,
		distance:   deps.Distance,
		score:      deps.Score,
		events:     deps.Events,
		locks:      newRoomTable(deps.Clock),
	}, nil
}

// Connect greets a new connection with its id so it can restore later.
func (o *Orchestrator) Connect(connectionID string) {
	o.send(connectionID, events.TypeConnectSuccess, events.ConnectSuccessPayload{
		ConnectionID: connectionID,
		Timestamp:    o.clock.Now().UnixMilli(),
	})
}

// Handle processes one client frame. Every request is answered with exactly one
// ack, or a pong for ping. Failures are reported to the requester only.
func (o *Orchestrator) Handle(ctx context.Context, connectionID string, raw []byte) {
	env, err := events.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("connection_id", connectionID).Msg("dropping malformed message")
		o.ack(connectionID, env, nil, models.ErrValidation("malformed message"))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("connection_id", connectionID).
				Str("event_type", string(env.Type)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic in handler")
			o.ack(connectionID, env, nil, models.NewError(models.CodeInternal, "failed to handle %s", env.Type))
		}
	}()

	if !env.Type.IsRequest() {
		log.Warn().
			Str("connection_id", connectionID).
			Str("event_type", string(env.Type)).
			Msg("rejecting event type not accepted from clients")
		o.ack(connectionID, env, nil, models.ErrValidation("event type %q is not accepted from clients", env.Type))
		return
	}

	o.registry.Touch(connectionID)

	req, err := events.ParseRequest(env)
	if err != nil {
		o.ack(connectionID, env, nil, models.ErrValidation("%v", err))
		return
	}

	if ping, ok := req.(events.PingRequest); ok {
		o.handlePing(connectionID, env, ping)
		return
	}

	data, err := o.HandleRequest(ctx, connectionID, req)
	o.ack(connectionID, env, data, err)
}

// HandleRequest routes a decoded request to its handler and returns the ack data.
func (o *Orchestrator) HandleRequest(ctx context.Context, connectionID string, req any) (any, error) {
	switch r := req.(type) {
	case events.CreateRoomRequest:
		return o.handleCreateRoom(connectionID, r)
	case events.JoinRoomRequest:
		return o.handleJoinRoom(connectionID, r)
	case events.LeaveRoomRequest:
		return o.handleLeaveRoom(connectionID, r)
	case events.PlayerReadyRequest:
		return o.handlePlayerReady(connectionID, r)
	case events.StartGameRequest:
		return o.handleStartGame(connectionID, r)
	case events.GuessSubmittedRequest:
		return o.handleGuess(connectionID, r)
	case events.RematchRequest:
		return o.handleRematch(connectionID, r)
	case events.RestoreSessionRequest:
		return o.handleRestore(connectionID, r)
	default:
		return nil, models.ErrValidation("unsupported request %T", req)
	}
}

func (o *Orchestrator) handlePing(connectionID string, env events.Envelope, req events.PingRequest) {
	now := o.clock.Now().UnixMilli()
	ts := req.Timestamp
	if ts == 0 {
		ts = now
	}
	msg, err := events.EncodeReply(events.TypePong, env.RequestID, events.PongPayload{Timestamp: ts, ServerTime: now})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode pong")
		return
	}
	o.transport.Send(connectionID, msg)
}

// withRoom runs fn with the room's lock held.
func (o *Orchestrator) withRoom(code string, fn func(st *roomState) error) error {
	st := o.locks.acquire(code)
	defer o.locks.release(code, st, o.roomExists)
	return fn(st)
}

func (o *Orchestrator) roomExists(code string) bool {
	_, ok := o.registry.Room(code)
	return ok
}

// safe wraps a timer callback so a panic is logged instead of killing the process.
func (o *Orchestrator) safe(what, code string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("room_code", code).
					Str("callback", what).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic in timer callback")
			}
		}()
		fn()
	}
}

func (o *Orchestrator) ack(connectionID string, env events.Envelope, data any, err error) {
	a := events.Ack{
		RequestID: env.RequestID,
		Event:     env.Type,
		Success:   err == nil,
		Data:      data,
	}
	if err != nil {
		a.Data = nil
		a.Error = models.AsError(err, fmt.Sprintf("failed to handle %s", env.Type))

		ev := log.Warn()
		if a.Error.Code == models.CodeInternal {
			ev = log.Error()
		}
		ev.Err(err).
			Str("connection_id", connectionID).
			Str("event_type", string(env.Type)).
			Str("code", string(a.Error.Code)).
			Msg("request failed")
	}
	o.send(connectionID, events.TypeAck, a)
}

func (o *Orchestrator) send(connectionID string, t events.Type, payload any) {
	msg, err := events.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to encode message")
		return
	}
	o.transport.Send(connectionID, msg)
}

func (o *Orchestrator) broadcast(code string, t events.Type, payload any) {
	msg, err := events.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to encode broadcast")
		return
	}
	o.transport.Broadcast(code, msg)
}

func (o *Orchestrator) broadcastExcept(code, exceptID string, t events.Type, payload any) {
	msg, err := events.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to encode broadcast")
		return
	}
	o.transport.BroadcastExcept(code, exceptID, msg)
}

func (o *Orchestrator) publish(eventType, code string, payload any) {
	if o.events == nil {
		return
	}
	o.events.Enqueue(publisher.NewEvent(eventType, code, o.clock.Now(), payload))
}

// Stats is the orchestrator's monitoring snapshot.
type Stats struct {
	Rooms       rooms.Stats `json:"rooms"`
	Games       game.Stats  `json:"games"`
	LockedRooms int         `json:"lockedRooms"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Rooms:       o.registry.Stats(),
		Games:       o.games.Stats(),
		LockedRooms: o.locks.len(),
	}
}
