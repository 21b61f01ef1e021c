// Package rooms owns the set of active rooms and the sessions that bind
// connections to them.
package rooms

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/clock"
	"github.com/mcdev12/geoquest/go/internal/models"
)

const maxCodeAttempts = 1000

// Config holds the registry's timeouts and defaults.
type Config struct {
	SessionTimeout    time.Duration
	RoomTimeout       time.Duration
	DefaultMaxPlayers int
	// DefaultSettings is used by a rematch when the room has no recorded settings.
	DefaultSettings models.GameSettings
}

// DefaultConfig returns the production timeouts.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:    5 * time.Minute,
		RoomTimeout:       10 * time.Minute,
		DefaultMaxPlayers: models.DefaultMaxPlayers,
		DefaultSettings: models.GameSettings{
			Difficulty:   models.DifficultyMedium,
			TimerSeconds: 30,
		},
	}
}

// CodeGenerator produces candidate room codes.
type CodeGenerator func() string

// RandomCode returns a random code in 10000..99999.
func RandomCode() string {
	return strconv.Itoa(10000 + rand.IntN(90000))
}

// Option configures a Registry.
type Option func(*Registry)

// WithCodeGenerator replaces the random room code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(r *Registry) { r.newCode = g }
}

// Registry holds rooms and sessions. Every operation runs to completion under
// one mutex and returns copies, so callers never share state with the registry.
type Registry struct {
	clock   clock.Clock
	cfg     Config
	newCode CodeGenerator

	mu       sync.Mutex
	rooms    map[string]*models.Room
	sessions map[string]*models.Session
}

// NewRegistry creates an empty registry.
func NewRegistry(c clock.Clock, cfg Config, opts ...Option) *Registry {
	if cfg.DefaultMaxPlayers == 0 {
		cfg.DefaultMaxPlayers = models.DefaultMaxPlayers
	}
	r := &Registry{
		clock:    c,
		cfg:      cfg,
		newCode:  RandomCode,
		rooms:    make(map[string]*models.Room),
		sessions: make(map[string]*models.Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidRoomCode reports whether code is exactly five ASCII digits.
func ValidRoomCode(code string) bool {
	if len(code) != models.RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// CreateRoom creates a room hosted by connectionID. A maxPlayers of 0 uses the default.
func (r *Registry) CreateRoom(playerName, connectionID string, maxPlayers int) (models.Room, models.Player, error) {
	if maxPlayers == 0 {
		maxPlayers = r.cfg.DefaultMaxPlayers
	}
	if maxPlayers < models.MinPlayers || maxPlayers > models.MaxPlayers {
		return models.Room{}, models.Player{}, models.ErrValidation(
			"maxPlayers must be between %d and %d", models.MinPlayers, models.MaxPlayers)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[connectionID]; ok {
		return models.Room{}, models.Player{}, models.ErrValidation("already in room %s", s.RoomCode)
	}

	code, err := r.uniqueCodeLocked()
	if err != nil {
		return models.Room{}, models.Player{}, err
	}

	now := r.clock.Now()
	host := models.Player{
		ID:       connectionID,
		Name:     playerName,
		IsHost:   true,
		JoinedAt: now,
	}
	room := &models.Room{
		Code:       code,
		Players:    []models.Player{host},
		MaxPlayers: maxPlayers,
		Status:     models.RoomStatusWaiting,
		CreatedAt:  now,
	}
	r.rooms[code] = room
	r.createSessionLocked(connectionID, code, host, now)

	log.Info().
		Str("room_code", code).
		Str("connection_id", connectionID).
		Int("max_players", maxPlayers).
		Msg("room created")

	return room.Clone(), host, nil
}

// uniqueCodeLocked regenerates until the code is not in use.
func (r *Registry) uniqueCodeLocked() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := r.newCode()
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", models.NewError(models.CodeInternal, "failed to allocate a room code")
}

// JoinRoom appends a non-host player to the room.
func (r *Registry) JoinRoom(code, playerName, connectionID string) (models.Room, models.Player, error) {
	if !ValidRoomCode(code) {
		return models.Room{}, models.Player{}, models.ErrInvalidRoomCode(code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return models.Room{}, models.Player{}, models.ErrRoomNotFound(code)
	}
	if room.IsFull() {
		return models.Room{}, models.Player{}, models.ErrRoomFull(code)
	}
	if room.Status != models.RoomStatusWaiting {
		return models.Room{}, models.Player{}, models.ErrGameInProgress(code)
	}
	if s, ok := r.sessions[connectionID]; ok {
		return models.Room{}, models.Player{}, models.ErrValidation("already in room %s", s.RoomCode)
	}

	now := r.clock.Now()
	player := models.Player{
		ID:       connectionID,
		Name:     playerName,
		JoinedAt: now,
	}
	room.Players = append(room.Players, player)
	r.createSessionLocked(connectionID, code, player, now)

	return room.Clone(), player, nil
}

// LeaveRoom removes the player. It returns nil when the room does not exist or
// was deleted because it became empty. A player not in the room leaves it unchanged.
func (r *Registry) LeaveRoom(code, connectionID string) (*models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(code, connectionID)
}

func (r *Registry) leaveLocked(code, connectionID string) (*models.Room, bool) {
	if s, ok := r.sessions[connectionID]; ok && s.RoomCode == code {
		delete(r.sessions, connectionID)
	}

	room, ok := r.rooms[code]
	if !ok {
		return nil, false
	}

	i := room.PlayerIndex(connectionID)
	if i < 0 {
		c := room.Clone()
		return &c, false
	}

	wasHost := room.Players[i].IsHost
	room.Players = append(room.Players[:i], room.Players[i+1:]...)
	if room.Rematch != nil {
		room.Rematch.Remove(connectionID)
	}

	if len(room.Players) == 0 {
		delete(r.rooms, code)
		log.Info().Str("room_code", code).Msg("room deleted, last player left")
		return nil, wasHost
	}

	if wasHost {
		room.Players[0].IsHost = true
		r.syncSessionLocked(room.Players[0])
	}

	c := room.Clone()
	return &c, wasHost
}

// SetPlayerReady updates readiness and refreshes the player's session.
func (r *Registry) SetPlayerReady(code, connectionID string, isReady bool) (models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return models.Room{}, models.ErrRoomNotFound(code)
	}
	i := room.PlayerIndex(connectionID)
	if i < 0 {
		return models.Room{}, models.ErrPlayerNotFound(connectionID)
	}

	room.Players[i].IsReady = isReady
	r.syncSessionLocked(room.Players[i])
	r.touchLocked(connectionID)

	return room.Clone(), nil
}

// RestoreSession moves the session of oldID onto newID. It fails softly when
// the session is missing or expired, the room code differs, newID already
// holds a session of its own, or the room or player is gone. Expired and
// orphaned sessions are removed.
func (r *Registry) RestoreSession(oldID, newID, code string) (models.Room, models.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[oldID]
	if !ok {
		return models.Room{}, models.Player{}, false
	}

	now := r.clock.Now()
	if session.Expired(now, r.cfg.SessionTimeout) {
		delete(r.sessions, oldID)
		return models.Room{}, models.Player{}, false
	}
	if session.RoomCode != code {
		return models.Room{}, models.Player{}, false
	}
	if _, taken := r.sessions[newID]; taken && newID != oldID {
		log.Warn().
			Str("room_code", code).
			Str("connection_id", newID).
			Msg("restore rejected, connection already holds a session")
		return models.Room{}, models.Player{}, false
	}

	room, ok := r.rooms[code]
	if !ok {
		delete(r.sessions, oldID)
		return models.Room{}, models.Player{}, false
	}
	i := room.PlayerIndex(oldID)
	if i < 0 {
		delete(r.sessions, oldID)
		return models.Room{}, models.Player{}, false
	}

	room.Players[i].ID = newID
	if room.Rematch != nil {
		room.Rematch.Rename(oldID, newID)
	}

	delete(r.sessions, oldID)
	session.ConnectionID = newID
	session.LastActivityAt = now
	session.Player = room.Players[i]
	r.sessions[newID] = session

	log.Info().
		Str("room_code", code).
		Str("connection_id", newID).
		Str("previous_connection_id", oldID).
		Msg("session restored")

	return room.Clone(), room.Players[i], true
}

// Touch records activity on the connection's session.
func (r *Registry) Touch(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touchLocked(connectionID)
}

func (r *Registry) touchLocked(connectionID string) bool {
	s, ok := r.sessions[connectionID]
	if !ok {
		return false
	}
	s.LastActivityAt = r.clock.Now()
	return true
}

// Session returns a copy of the connection's session.
func (r *Registry) Session(connectionID string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// Room returns a copy of the room.
func (r *Registry) Room(code string) (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return models.Room{}, false
	}
	return room.Clone(), true
}

// Stats is a monitoring snapshot.
type Stats struct {
	Rooms        int `json:"rooms"`
	Sessions     int `json:"sessions"`
	TotalPlayers int `json:"totalPlayers"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{Rooms: len(r.rooms), Sessions: len(r.sessions)}
	for _, room := range r.rooms {
		st.TotalPlayers += len(room.Players)
	}
	return st
}

func (r *Registry) createSessionLocked(connectionID, code string, p models.Player, now time.Time) {
	r.sessions[connectionID] = &models.Session{
		ConnectionID:   connectionID,
		RoomCode:       code,
		Player:         p,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// syncSessionLocked keeps the session's player copy in step with the room.
func (r *Registry) syncSessionLocked(p models.Player) {
	if s, ok := r.sessions[p.ID]; ok {
		s.Player = p
	}
}

func (r *Registry) roomLocked(code string) (*models.Room, error) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, models.ErrRoomNotFound(code)
	}
	return room, nil
}
