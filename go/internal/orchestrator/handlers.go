package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/models"
)

func (o *Orchestrator) validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.ErrValidation("player name is required")
	}
	if o.cfg.MaxNameLength > 0 && utf8.RuneCountInString(name) > o.cfg.MaxNameLength {
		return "", models.ErrValidation("player name must be at most %d characters", o.cfg.MaxNameLength)
	}
	return name, nil
}

func requireRoomCode(code string) error {
	if code == "" {
		return models.ErrValidation("room code is required")
	}
	return nil
}

func (o *Orchestrator) handleCreateRoom(connectionID string, req events.CreateRoomRequest) (any, error) {
	name, err := o.validName(req.PlayerName)
	if err != nil {
		return nil, err
	}

	room, player, err := o.registry.CreateRoom(name, connectionID, req.MaxPlayers)
	if err != nil {
		return nil, err
	}
	o.transport.JoinGroup(connectionID, room.Code)

	return events.RoomPlayerPayload{Room: room, Player: player}, nil
}

func (o *Orchestrator) handleJoinRoom(connectionID string, req events.JoinRoomRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}
	name, err := o.validName(req.PlayerName)
	if err != nil {
		return nil, err
	}

	var resp events.RoomPlayerPayload
	err = o.withRoom(req.RoomCode, func(st *roomState) error {
		room, player, err := o.registry.JoinRoom(req.RoomCode, name, connectionID)
		if err != nil {
			return err
		}
		o.transport.JoinGroup(connectionID, room.Code)

		o.broadcastExcept(room.Code, connectionID, events.TypePlayerJoined, events.PlayerJoinedPayload{Player: player, Room: room})
		o.broadcast(room.Code, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: room})

		log.Info().
			Str("room_code", room.Code).
			Str("connection_id", connectionID).
			Int("players", len(room.Players)).
			Msg("player joined room")

		resp = events.RoomPlayerPayload{Room: room, Player: player}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) handleLeaveRoom(connectionID string, req events.LeaveRoomRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}

	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		current, ok := o.registry.Room(req.RoomCode)
		if !ok {
			return models.ErrRoomNotFound(req.RoomCode)
		}
		if current.PlayerIndex(connectionID) < 0 {
			return models.ErrPlayerNotFound(connectionID)
		}

		room, wasHost := o.registry.LeaveRoom(req.RoomCode, connectionID)
		o.transport.LeaveGroup(connectionID, req.RoomCode)

		log.Info().
			Str("room_code", req.RoomCode).
			Str("connection_id", connectionID).
			Bool("was_host", wasHost).
			Msg("player left room")

		o.afterDeparture(st, req.RoomCode, connectionID, room)
		return nil
	})
	return nil, err
}

// afterDeparture notifies the room of a player leaving, tears the room down if
// it is gone, and re-checks a pending rematch. The room lock is held.
func (o *Orchestrator) afterDeparture(st *roomState, code, connectionID string, room *models.Room) {
	if room == nil {
		o.teardownRoom(st, code)
		return
	}

	o.broadcastExcept(code, connectionID, events.TypePlayerLeft, events.PlayerLeftPayload{PlayerID: connectionID, Room: *room})
	o.broadcast(code, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: *room})

	if room.Status == models.RoomStatusFinished {
		o.maybeStartRematch(st, code)
	}
}

// teardownRoom stops everything still scheduled for a deleted room.
func (o *Orchestrator) teardownRoom(st *roomState, code string) {
	st.advance.Stop()
	st.rematch.Stop()
	o.games.Delete(code)
	log.Info().Str("room_code", code).Msg("room torn down")
}

func (o *Orchestrator) handlePlayerReady(connectionID string, req events.PlayerReadyRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}
	if req.IsReady == nil {
		return nil, models.ErrValidation("isReady is required")
	}

	var resp events.RoomUpdatedPayload
	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		room, err := o.registry.SetPlayerReady(req.RoomCode, connectionID, *req.IsReady)
		if err != nil {
			return err
		}

		o.broadcast(room.Code, events.TypePlayerReadyChanged, events.PlayerReadyChangedPayload{
			PlayerID: connectionID,
			IsReady:  *req.IsReady,
			Room:     room,
		})
		o.broadcast(room.Code, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: room})

		resp = events.RoomUpdatedPayload{Room: room}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) handleRestore(connectionID string, req events.RestoreSessionRequest) (any, error) {
	if req.PreviousConnectionID == "" || req.RoomCode == "" {
		return nil, models.ErrValidation("previous connection id and room code are required")
	}

	var resp events.SessionRestoredPayload
	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		room, player, ok := o.registry.RestoreSession(req.PreviousConnectionID, connectionID, req.RoomCode)
		if !ok {
			return models.NewError(models.CodeUnauthorized, "session not found or expired")
		}

		o.transport.LeaveGroup(req.PreviousConnectionID, room.Code)
		o.transport.JoinGroup(connectionID, room.Code)
		if sess := o.games.Get(room.Code); sess != nil {
			sess.RenamePlayer(req.PreviousConnectionID, connectionID)
		}

		o.broadcastExcept(room.Code, connectionID, events.TypeRoomUpdated, events.RoomUpdatedPayload{Room: room})

		resp = events.SessionRestoredPayload{Room: room, Player: player, Reconnected: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
