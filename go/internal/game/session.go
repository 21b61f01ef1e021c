// Package game runs the rounds of one room's game: guess collection, scoring
// and the round timer.
package game

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/geoquest/go/internal/clock"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/scoring"
)

// AutoSubmitCoordinates is where a missing guess is placed when the round ends.
var AutoSubmitCoordinates = models.Coordinates{Lat: 0, Lng: 0}

// Deps are the collaborators a Session needs.
type Deps struct {
	Clock    clock.Clock
	Distance scoring.DistanceFunc
	Score    scoring.ScoreFunc
	// Locker is the room lock; the round timer callback runs with it held.
	Locker sync.Locker
}

func (d Deps) withDefaults() Deps {
	if d.Distance == nil {
		d.Distance = scoring.Distance
	}
	if d.Score == nil {
		d.Score = scoring.Score
	}
	if d.Locker == nil {
		d.Locker = &sync.Mutex{}
	}
	return d
}

// Guess is one player's answer for a round.
type Guess struct {
	Coordinates     models.Coordinates
	Distance        int
	Score           int
	ClientTimestamp int64
	SubmittedAt     time.Time
	AutoSubmitted   bool
}

// PlayerScore accumulates a player's results across rounds.
type PlayerScore struct {
	PlayerName     string
	TotalScore     int
	RoundScores    []int
	RoundDistances []int
}

// GuessResult is returned to the player who guessed.
type GuessResult struct {
	Distance        int  `json:"distance"`
	Score           int  `json:"score"`
	IsRoundComplete bool `json:"isRoundComplete"`
}

// RoundResult is one row of a round's results.
type RoundResult struct {
	PlayerID      string             `json:"playerId"`
	PlayerName    string             `json:"playerName"`
	Guess         models.Coordinates `json:"guess"`
	Distance      int                `json:"distance"`
	Score         int                `json:"score"`
	AutoSubmitted bool               `json:"autoSubmitted,omitempty"`
}

// Standing is a player's cumulative score.
type Standing struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	TotalScore int    `json:"totalScore"`
}

// FinalStanding adds per-game statistics to a Standing.
type FinalStanding struct {
	PlayerID        string `json:"playerId"`
	PlayerName      string `json:"playerName"`
	TotalScore      int    `json:"totalScore"`
	AverageDistance int    `json:"averageDistance"`
	RoundScores     []int  `json:"roundScores"`
	BestRound       int    `json:"bestRound"`
	WorstRound      int    `json:"worstRound"`
}

// FinalResults ends a game. Winner is the first final standing.
type FinalResults struct {
	FinalStandings []FinalStanding `json:"finalStandings"`
	Winner         *Standing       `json:"winner"`
}

// Session is the live state of one room's game. It is not safe for concurrent
// use; the owning room's lock serializes every call.
type Session struct {
	RoomCode     string
	Cities       []models.City
	Difficulty   models.Difficulty
	TimerSeconds int
	CurrentRound int
	TotalRounds  int

	deps Deps

	// players is the roster captured when the game started, in room order.
	players []string
	names   map[string]string
	scores  map[string]*PlayerScore

	guesses    map[string]*Guess
	guessOrder []string
	roundStart time.Time
	roundOpen  bool

	timer *clock.Slot
}

// NewSession creates a game over cities, one per round.
func NewSession(code string, cities []models.City, difficulty models.Difficulty, timerSeconds int, deps Deps) (*Session, error) {
	if len(cities) < models.TotalRounds {
		return nil, fmt.Errorf("need %d cities, got %d", models.TotalRounds, len(cities))
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	deps = deps.withDefaults()

	return &Session{
		RoomCode:     code,
		Cities:       slices.Clone(cities[:models.TotalRounds]),
		Difficulty:   difficulty,
		TimerSeconds: timerSeconds,
		CurrentRound: 1,
		TotalRounds:  models.TotalRounds,
		deps:         deps,
		names:        make(map[string]string),
		scores:       make(map[string]*PlayerScore),
		guesses:      make(map[string]*Guess),
		timer:        clock.NewSlot(deps.Clock, deps.Locker),
	}, nil
}

// InitializePlayers snapshots the roster. Later membership changes do not
// affect the game.
func (s *Session) InitializePlayers(players []models.Player) {
	for _, p := range players {
		if _, ok := s.names[p.ID]; ok {
			continue
		}
		s.players = append(s.players, p.ID)
		s.names[p.ID] = p.Name
		s.scores[p.ID] = &PlayerScore{PlayerName: p.Name}
	}
}

// Players returns the roster ids in room order.
func (s *Session) Players() []string {
	return slices.Clone(s.players)
}

// PlayerName returns the roster name for id.
func (s *Session) PlayerName(id string) (string, bool) {
	name, ok := s.names[id]
	return name, ok
}

// RenamePlayer moves a player's game state onto a restored connection id.
func (s *Session) RenamePlayer(oldID, newID string) {
	name, ok := s.names[oldID]
	if !ok || oldID == newID {
		return
	}
	delete(s.names, oldID)
	s.names[newID] = name
	s.scores[newID] = s.scores[oldID]
	delete(s.scores, oldID)
	if g, ok := s.guesses[oldID]; ok {
		delete(s.guesses, oldID)
		s.guesses[newID] = g
	}
	for i, id := range s.players {
		if id == oldID {
			s.players[i] = newID
		}
	}
	for i, id := range s.guessOrder {
		if id == oldID {
			s.guessOrder[i] = newID
		}
	}
}

// StartRound opens the current round and returns its start time.
func (s *Session) StartRound() time.Time {
	s.roundStart = s.deps.Clock.Now()
	s.clearGuesses()
	s.roundOpen = true
	return s.roundStart
}

// RoundStartTime is zero between rounds.
func (s *Session) RoundStartTime() time.Time {
	return s.roundStart
}

// CurrentCity returns the target of the current round.
func (s *Session) CurrentCity() models.City {
	return s.Cities[s.CurrentRound-1]
}

// IsFinalRound reports whether the current round is the last.
func (s *Session) IsFinalRound() bool {
	return s.CurrentRound >= s.TotalRounds
}

// RoundOpen reports whether guesses are being accepted.
func (s *Session) RoundOpen() bool {
	return s.roundOpen
}

// CloseRound stops accepting guesses. It reports true only for the call that
// closed the round, so round completion runs once however it was triggered.
func (s *Session) CloseRound() bool {
	if !s.roundOpen {
		return false
	}
	s.roundOpen = false
	s.ClearRoundTimer()
	return true
}

// AddGuess scores a player's guess for the current round.
func (s *Session) AddGuess(connectionID string, guess models.Coordinates, clientTimestamp int64) (GuessResult, error) {
	if _, ok := s.names[connectionID]; !ok {
		return GuessResult{}, models.ErrPlayerNotFound(connectionID)
	}
	if !s.roundOpen {
		return GuessResult{}, models.ErrValidation("round %d is not accepting guesses", s.CurrentRound)
	}
	if _, ok := s.guesses[connectionID]; ok {
		return GuessResult{}, models.ErrValidation("guess already submitted for round %d", s.CurrentRound)
	}
	if !guess.Valid() {
		return GuessResult{}, models.ErrValidation("guess coordinates out of range")
	}

	g := s.record(connectionID, guess, clientTimestamp, false)
	return GuessResult{
		Distance:        g.Distance,
		Score:           g.Score,
		IsRoundComplete: s.IsRoundComplete(),
	}, nil
}

func (s *Session) record(connectionID string, coords models.Coordinates, clientTimestamp int64, auto bool) *Guess {
	city := s.CurrentCity()
	tier := city.Tier
	if tier == 0 {
		tier = 1
	}

	distance := s.deps.Distance(coords, city.Coordinates())
	score := s.deps.Score(distance, tier, s.Difficulty.Level())

	g := &Guess{
		Coordinates:     coords,
		Distance:        distance,
		Score:           score,
		ClientTimestamp: clientTimestamp,
		SubmittedAt:     s.deps.Clock.Now(),
		AutoSubmitted:   auto,
	}
	s.guesses[connectionID] = g
	s.guessOrder = append(s.guessOrder, connectionID)

	if ps, ok := s.scores[connectionID]; ok {
		ps.TotalScore += score
		ps.RoundScores = append(ps.RoundScores, score)
		ps.RoundDistances = append(ps.RoundDistances, distance)
	}
	return g
}

// HasGuessed reports whether the player already answered this round.
func (s *Session) HasGuessed(connectionID string) bool {
	_, ok := s.guesses[connectionID]
	return ok
}

// GuessCount is the number of guesses in the current round.
func (s *Session) GuessCount() int {
	return len(s.guesses)
}

// IsRoundComplete reports whether every rostered player has guessed.
func (s *Session) IsRoundComplete() bool {
	for _, id := range s.players {
		if _, ok := s.guesses[id]; !ok {
			return false
		}
	}
	return true
}

// AutoSubmitMissingGuesses fills in a guess at AutoSubmitCoordinates for every
// rostered player who has not answered, and returns their ids.
func (s *Session) AutoSubmitMissingGuesses() []string {
	var filled []string
	ts := s.deps.Clock.Now().UnixMilli()
	for _, id := range s.players {
		if _, ok := s.guesses[id]; ok {
			continue
		}
		s.record(id, AutoSubmitCoordinates, ts, true)
		filled = append(filled, id)
	}
	return filled
}

// CalculateRoundResults lists the round's guesses by score, highest first.
// Equal scores keep submission order.
func (s *Session) CalculateRoundResults() []RoundResult {
	results := make([]RoundResult, 0, len(s.guessOrder))
	for _, id := range s.guessOrder {
		g := s.guesses[id]
		name, ok := s.names[id]
		if !ok || g == nil {
			continue
		}
		results = append(results, RoundResult{
			PlayerID:      id,
			PlayerName:    name,
			Guess:         g.Coordinates,
			Distance:      g.Distance,
			Score:         g.Score,
			AutoSubmitted: g.AutoSubmitted,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// Standings lists cumulative totals, highest first. Ties keep roster order.
func (s *Session) Standings() []Standing {
	standings := make([]Standing, 0, len(s.players))
	for _, id := range s.players {
		ps := s.scores[id]
		standings = append(standings, Standing{
			PlayerID:   id,
			PlayerName: ps.PlayerName,
			TotalScore: ps.TotalScore,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].TotalScore > standings[j].TotalScore })
	return standings
}

// FinalStandings ranks the players with per-game statistics.
func (s *Session) FinalStandings() FinalResults {
	final := make([]FinalStanding, 0, len(s.players))
	for _, id := range s.players {
		ps := s.scores[id]
		fs := FinalStanding{
			PlayerID:    id,
			PlayerName:  ps.PlayerName,
			TotalScore:  ps.TotalScore,
			RoundScores: slices.Clone(ps.RoundScores),
		}
		if fs.RoundScores == nil {
			fs.RoundScores = []int{}
		}
		if n := len(ps.RoundDistances); n > 0 {
			sum := 0
			for _, d := range ps.RoundDistances {
				sum += d
			}
			fs.AverageDistance = int(math.Round(float64(sum) / float64(n)))
		}
		if len(ps.RoundScores) > 0 {
			fs.BestRound = slices.Max(ps.RoundScores)
			fs.WorstRound = slices.Min(ps.RoundScores)
		}
		final = append(final, fs)
	}
	sort.SliceStable(final, func(i, j int) bool { return final[i].TotalScore > final[j].TotalScore })

	res := FinalResults{FinalStandings: final}
	if len(final) > 0 {
		res.Winner = &Standing{
			PlayerID:   final[0].PlayerID,
			PlayerName: final[0].PlayerName,
			TotalScore: final[0].TotalScore,
		}
	}
	return res
}

// Score returns a copy of the player's accumulated score.
func (s *Session) Score(connectionID string) (PlayerScore, bool) {
	ps, ok := s.scores[connectionID]
	if !ok {
		return PlayerScore{}, false
	}
	c := *ps
	c.RoundScores = slices.Clone(ps.RoundScores)
	c.RoundDistances = slices.Clone(ps.RoundDistances)
	return c, true
}

// AdvanceRound moves to the next round. It returns false, changing nothing,
// once the final round has been reached.
func (s *Session) AdvanceRound() bool {
	if s.CurrentRound >= s.TotalRounds {
		return false
	}
	s.CurrentRound++
	s.clearGuesses()
	s.roundStart = time.Time{}
	s.roundOpen = false
	return true
}

// StartRoundTimer arms the round timer, replacing any outstanding one.
// onExpire runs with the room lock held.
func (s *Session) StartRoundTimer(onExpire func()) {
	s.timer.Schedule(time.Duration(s.TimerSeconds)*time.Second, onExpire)
}

// ClearRoundTimer cancels the round timer.
func (s *Session) ClearRoundTimer() {
	s.timer.Cancel()
}

// RoundTimerActive reports whether a round timer is outstanding.
func (s *Session) RoundTimerActive() bool {
	return s.timer.Active()
}

// Destroy cancels timers and drops all game state.
func (s *Session) Destroy() {
	s.ClearRoundTimer()
	s.roundOpen = false
	s.clearGuesses()
	clear(s.scores)
	clear(s.names)
	s.players = nil
}

func (s *Session) clearGuesses() {
	clear(s.guesses)
	s.guessOrder = s.guessOrder[:0]
}
