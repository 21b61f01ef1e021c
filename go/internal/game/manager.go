package game

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/models"
)

// Manager maps room codes to their running game.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create starts a game for the room, destroying any previous one. The caller
// holds the room lock.
func (m *Manager) Create(code string, cities []models.City, difficulty models.Difficulty, timerSeconds int, players []models.Player, deps Deps) (*Session, error) {
	s, err := NewSession(code, cities, difficulty, timerSeconds, deps)
	if err != nil {
		return nil, err
	}
	s.InitializePlayers(players)

	m.mu.Lock()
	prev := m.sessions[code]
	m.sessions[code] = s
	m.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}

	log.Info().
		Str("room_code", code).
		Str("difficulty", string(difficulty)).
		Int("timer_seconds", timerSeconds).
		Int("players", len(players)).
		Msg("game session created")
	return s, nil
}

// Get returns the room's game, or nil.
func (m *Manager) Get(code string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[code]
}

// Delete destroys the room's game. The caller holds the room lock.
func (m *Manager) Delete(code string) {
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()

	if ok {
		s.Destroy()
		log.Info().Str("room_code", code).Msg("game session deleted")
	}
}

// Stats is a monitoring snapshot.
type Stats struct {
	TotalSessions  int      `json:"totalSessions"`
	ActiveSessions []string `json:"activeSessions"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]string, 0, len(m.sessions))
	for code := range m.sessions {
		active = append(active, code)
	}
	slices.Sort(active)
	return Stats{TotalSessions: len(m.sessions), ActiveSessions: active}
}
