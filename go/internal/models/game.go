package models

import "slices"

// Difficulty selects the city pool and the score multiplier of a game.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Level maps the difficulty onto the single-player level used for scoring.
func (d Difficulty) Level() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 10
	default:
		return 5
	}
}

// MaxTier is the highest city tier drawn for the difficulty.
func (d Difficulty) MaxTier() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	default:
		return 3
	}
}

const TotalRounds = 5

// GameSettings are the host's choices when starting a game.
type GameSettings struct {
	Difficulty   Difficulty `json:"difficulty"`
	TimerSeconds int        `json:"timerDuration"`
}

// ValidTimer reports whether seconds is one of the allowed round durations.
func ValidTimer(seconds int, allowed []int) bool {
	return slices.Contains(allowed, seconds)
}

// Coordinates is a point on the globe in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within latitude and longitude bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// City is a round target.
type City struct {
	Name      string  `json:"name" yaml:"name"`
	Country   string  `json:"country" yaml:"country"`
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"lng"`
	// Tier ranks how well known the city is, 1 (famous) to 3 (obscure).
	Tier int `json:"tier,omitempty" yaml:"tier"`
}

func (c City) Coordinates() Coordinates {
	return Coordinates{Lat: c.Latitude, Lng: c.Longitude}
}
