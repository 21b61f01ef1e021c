package models

import "time"

// Session binds a connection to its room and player for reconnection.
type Session struct {
	ConnectionID   string    `json:"connectionId"`
	RoomCode       string    `json:"roomCode"`
	Player         Player    `json:"player"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// Expired reports whether the session has been idle longer than timeout.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}
