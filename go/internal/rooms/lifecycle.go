package rooms

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/models"
)

// CheckStart reports whether connectionID may start a game in the room now.
func (r *Registry) CheckStart(code, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.roomLocked(code)
	if err != nil {
		return err
	}
	return startable(room, connectionID)
}

func startable(room *models.Room, connectionID string) error {
	host, ok := room.Host()
	if !ok || host.ID != connectionID {
		return models.NewError(models.CodeUnauthorized, "only the host can start the game")
	}
	if room.Status != models.RoomStatusWaiting {
		return models.ErrGameInProgress(room.Code)
	}
	if !room.AllReady() {
		return models.ErrValidation("all players must be ready")
	}
	return nil
}

// BeginGame moves a waiting room to playing after re-checking the start
// conditions, and records settings for a later rematch.
func (r *Registry) BeginGame(code, connectionID string, settings models.GameSettings) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.roomLocked(code)
	if err != nil {
		return models.Room{}, err
	}
	if err := startable(room, connectionID); err != nil {
		return models.Room{}, err
	}

	room.Status = models.RoomStatusPlaying
	room.LastSettings = &settings
	room.Rematch = nil
	r.touchLocked(connectionID)

	return room.Clone(), nil
}

// FinishGame moves a playing room to finished and opens rematch negotiation.
func (r *Registry) FinishGame(code string) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.roomLocked(code)
	if err != nil {
		return models.Room{}, err
	}
	room.Status = models.RoomStatusFinished
	room.Rematch = &models.RematchNegotiation{}

	return room.Clone(), nil
}

// RequestRematch opts connectionID into a rematch of a finished room. Repeated
// requests are accepted and change nothing.
func (r *Registry) RequestRematch(code, connectionID string) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.roomLocked(code)
	if err != nil {
		return models.Room{}, err
	}
	if room.Status != models.RoomStatusFinished || room.Rematch == nil {
		return models.Room{}, models.ErrValidation("rematch is only possible once the game has finished")
	}
	if room.PlayerIndex(connectionID) < 0 {
		return models.Room{}, models.ErrPlayerNotFound(connectionID)
	}

	room.Rematch.Add(connectionID)
	r.touchLocked(connectionID)

	return room.Clone(), nil
}

// ArmRematchCountdown marks the rematch countdown active when every current
// player has opted in and no countdown is running. It reports whether this call
// armed it; at most one caller ever gets true per negotiation.
func (r *Registry) ArmRematchCountdown(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok || room.Status != models.RoomStatusFinished || room.Rematch == nil {
		return false
	}
	if room.Rematch.CountdownActive || !room.Rematch.Covers(room.Players) {
		return false
	}

	room.Rematch.CountdownActive = true
	log.Info().
		Str("room_code", code).
		Int("players", len(room.Players)).
		Msg("all players want a rematch")
	return true
}

// BeginRematch closes the negotiation, marks every player ready and moves the
// room back to playing. It returns the settings of the previous game.
func (r *Registry) BeginRematch(code string) (models.Room, models.GameSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.roomLocked(code)
	if err != nil {
		return models.Room{}, models.GameSettings{}, err
	}
	if room.Status != models.RoomStatusFinished || room.Rematch == nil || !room.Rematch.CountdownActive {
		return models.Room{}, models.GameSettings{}, models.ErrValidation("no rematch countdown in room %s", code)
	}

	settings := r.cfg.DefaultSettings
	if room.LastSettings != nil {
		settings = *room.LastSettings
	}

	room.Rematch = nil
	for i := range room.Players {
		room.Players[i].IsReady = true
		r.syncSessionLocked(room.Players[i])
	}
	room.Status = models.RoomStatusPlaying

	return room.Clone(), settings, nil
}
