package models

import "time"

// Player is a participant in a room. ID is the connection identity and changes
// when a session is restored on a new connection.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsReady  bool      `json:"isReady"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}
