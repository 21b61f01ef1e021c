package orchestrator

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/models"
)

func (o *Orchestrator) handleRematch(connectionID string, req events.RematchRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}

	var resp events.RematchStatusPayload
	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		room, err := o.registry.RequestRematch(req.RoomCode, connectionID)
		if err != nil {
			return err
		}

		resp = rematchStatus(room)
		o.broadcast(room.Code, events.TypeRematchStatusUpdated, resp)

		log.Info().
			Str("room_code", room.Code).
			Str("connection_id", connectionID).
			Int("requests", len(resp.PlayersReady)).
			Int("players", resp.TotalPlayers).
			Msg("rematch requested")

		o.maybeStartRematch(st, room.Code)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func rematchStatus(room models.Room) events.RematchStatusPayload {
	status := events.RematchStatusPayload{PlayersReady: []string{}, TotalPlayers: len(room.Players)}
	if room.Rematch != nil {
		status.PlayersReady = append(status.PlayersReady, room.Rematch.Requests...)
	}
	return status
}

// maybeStartRematch starts the rematch countdown if every player has opted in.
// The registry guard makes this a no-op for every caller but the first.
// The room lock is held.
func (o *Orchestrator) maybeStartRematch(st *roomState, code string) {
	if !o.registry.ArmRematchCountdown(code) {
		return
	}

	from := o.cfg.RematchCountdown
	st.rematch.Start(from,
		func(remaining int) {
			if remaining == from {
				o.broadcast(code, events.TypeRematchCountdownStarted, events.RematchCountdownPayload{Countdown: remaining})
				return
			}
			o.broadcast(code, events.TypeRematchCountdownTick, events.RematchCountdownPayload{Countdown: remaining})
		},
		o.safe("rematch countdown", code, func() { o.beginRematch(st, code) }),
	)
}

// beginRematch restarts a finished room with its previous settings and new
// cities. The room lock is held.
func (o *Orchestrator) beginRematch(st *roomState, code string) {
	room, settings, err := o.registry.BeginRematch(code)
	if err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("rematch countdown ended without a rematch")
		return
	}

	o.games.Delete(code)

	picked := o.pickCities(settings.Difficulty, models.TotalRounds)
	if len(picked) < models.TotalRounds {
		log.Error().Str("room_code", code).Msg("failed to select sufficient cities for rematch")
		o.abortRematch(code)
		return
	}
	if err := o.launchGame(st, room, settings, picked, true); err != nil {
		log.Error().Err(err).Str("room_code", code).Msg("failed to launch rematch")
		o.abortRematch(code)
	}
}

// abortRematch puts the room back into finished so players can try again.
func (o *Orchestrator) abortRematch(code string) {
	room, err := o.registry.FinishGame(code)
	if err != nil {
		return
	}
	o.broadcast(code, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: room})
	o.broadcast(code, events.TypeRematchStatusUpdated, rematchStatus(room))
}
