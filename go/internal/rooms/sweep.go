package rooms

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/models"
)

// Departure is a player removed by the sweep because their session expired.
type Departure struct {
	ConnectionID string
	RoomCode     string
	Player       models.Player
	WasHost      bool
	// Room is the room after the departure, nil when it was deleted.
	Room *models.Room
}

// SweepResult lists what a sweep removed.
type SweepResult struct {
	Departures   []Departure
	DeletedRooms []string
}

// Sweep purges sessions idle beyond the session timeout, forcing those players
// out of their rooms, and deletes empty rooms older than the room timeout.
func (r *Registry) Sweep() SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var res SweepResult

	var expired []*models.Session
	for _, s := range r.sessions {
		if s.Expired(now, r.cfg.SessionTimeout) {
			expired = append(expired, s)
		}
	}

	for _, s := range expired {
		player := s.Player
		_, existed := r.rooms[s.RoomCode]
		room, wasHost := r.leaveLocked(s.RoomCode, s.ConnectionID)
		delete(r.sessions, s.ConnectionID)

		res.Departures = append(res.Departures, Departure{
			ConnectionID: s.ConnectionID,
			RoomCode:     s.RoomCode,
			Player:       player,
			WasHost:      wasHost,
			Room:         room,
		})
		if existed && room == nil {
			res.DeletedRooms = append(res.DeletedRooms, s.RoomCode)
		}
	}

	for code, room := range r.rooms {
		if len(room.Players) == 0 && now.Sub(room.CreatedAt) > r.cfg.RoomTimeout {
			delete(r.rooms, code)
			res.DeletedRooms = append(res.DeletedRooms, code)
		}
	}

	if len(expired) > 0 || len(res.DeletedRooms) > 0 {
		log.Info().
			Int("expired_sessions", len(expired)).
			Int("deleted_rooms", len(res.DeletedRooms)).
			Msg("sweep completed")
	}

	return res
}
