package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/clock"
	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/models"
)

// Disconnect handles a dropped connection. The player stays in the room and the
// session is kept for the restore window; the rest of the room is told.
func (o *Orchestrator) Disconnect(connectionID string) {
	session, ok := o.registry.Session(connectionID)
	if !ok {
		return
	}

	_ = o.withRoom(session.RoomCode, func(st *roomState) error {
		room, ok := o.registry.Room(session.RoomCode)
		if !ok {
			return nil
		}

		departed := events.PlayerDepartedPayload{PlayerID: connectionID, PlayerName: session.Player.Name}
		switch {
		case room.Status == models.RoomStatusPlaying && o.games.Get(room.Code) != nil:
			o.broadcastExcept(room.Code, connectionID, events.TypePlayerDisconnected, departed)
		case room.Status == models.RoomStatusFinished:
			o.broadcastExcept(room.Code, connectionID, events.TypePlayerLeftResults, departed)
		}
		o.broadcastExcept(room.Code, connectionID, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: room})

		log.Info().
			Str("room_code", room.Code).
			Str("connection_id", connectionID).
			Str("status", string(room.Status)).
			Msg("player disconnected, session preserved")
		return nil
	})
}

// Sweep purges expired sessions and stale rooms, then notifies the affected rooms.
func (o *Orchestrator) Sweep() {
	res := o.registry.Sweep()

	for _, d := range res.Departures {
		o.transport.LeaveGroup(d.ConnectionID, d.RoomCode)
		if d.Room == nil {
			continue
		}
		_ = o.withRoom(d.RoomCode, func(st *roomState) error {
			room, ok := o.registry.Room(d.RoomCode)
			if !ok {
				return nil
			}
			o.afterDeparture(st, d.RoomCode, d.ConnectionID, &room)
			return nil
		})
	}

	for _, code := range res.DeletedRooms {
		_ = o.withRoom(code, func(st *roomState) error {
			if !o.roomExists(code) {
				o.teardownRoom(st, code)
			}
			return nil
		})
	}
}

// RunSweeper calls Sweep every sweep interval until ctx is cancelled.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	log.Info().Dur("interval", o.cfg.SweepInterval).Msg("room sweeper started")
	clock.Every(ctx, o.clock, o.cfg.SweepInterval, o.Sweep)
	log.Info().Msg("room sweeper stopped")
}
