package models

import (
	"slices"
	"time"
)

// RoomStatus defines where a room is in its lifecycle.
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

const (
	MinPlayers        = 2
	MaxPlayers        = 5
	DefaultMaxPlayers = 5
	RoomCodeLength    = 5
)

// Room is a group of players sharing one game. Players are kept in join order;
// the first player becomes host when the host leaves.
type Room struct {
	Code       string     `json:"code"`
	Players    []Player   `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`

	// LastSettings is what the most recent game was started with, reused by rematch.
	LastSettings *GameSettings `json:"-"`
	// Rematch is non-nil only while the room is finished.
	Rematch *RematchNegotiation `json:"-"`
}

// Clone returns a deep copy safe to hand out of the registry.
func (r *Room) Clone() Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	if r.LastSettings != nil {
		s := *r.LastSettings
		c.LastSettings = &s
	}
	if r.Rematch != nil {
		n := r.Rematch.Clone()
		c.Rematch = &n
	}
	return c
}

// PlayerIndex returns the index of the player with id, or -1.
func (r *Room) PlayerIndex(id string) int {
	return slices.IndexFunc(r.Players, func(p Player) bool { return p.ID == id })
}

// Player returns the player with id.
func (r *Room) Player(id string) (Player, bool) {
	i := r.PlayerIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return r.Players[i], true
}

// Host returns the current host, if the room has players.
func (r *Room) Host() (Player, bool) {
	for _, p := range r.Players {
		if p.IsHost {
			return p, true
		}
	}
	return Player{}, false
}

// AllReady reports whether the room has players and every one is ready.
func (r *Room) AllReady() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// IsFull reports whether no further player can join.
func (r *Room) IsFull() bool {
	return len(r.Players) >= r.MaxPlayers
}

// RematchNegotiation tracks which players opted into a rematch of a finished room.
type RematchNegotiation struct {
	// Requests holds connection ids in the order they opted in.
	Requests        []string
	CountdownActive bool
}

func (n *RematchNegotiation) Clone() RematchNegotiation {
	return RematchNegotiation{
		Requests:        slices.Clone(n.Requests),
		CountdownActive: n.CountdownActive,
	}
}

// Add records id and reports whether it was new.
func (n *RematchNegotiation) Add(id string) bool {
	if slices.Contains(n.Requests, id) {
		return false
	}
	n.Requests = append(n.Requests, id)
	return true
}

func (n *RematchNegotiation) Remove(id string) {
	n.Requests = slices.DeleteFunc(n.Requests, func(r string) bool { return r == id })
}

// Rename rewrites oldID to newID after a session restore.
func (n *RematchNegotiation) Rename(oldID, newID string) {
	for i, r := range n.Requests {
		if r == oldID {
			n.Requests[i] = newID
		}
	}
}

// Covers reports whether every player in players has opted in.
func (n *RematchNegotiation) Covers(players []Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !slices.Contains(n.Requests, p.ID) {
			return false
		}
	}
	return true
}
