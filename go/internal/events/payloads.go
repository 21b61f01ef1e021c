package events

import (
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/models"
)

// Request payloads.

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type PlayerReadyRequest struct {
	RoomCode string `json:"roomCode"`
	IsReady  *bool  `json:"isReady"`
}

type StartGameRequest struct {
	RoomCode      string            `json:"roomCode"`
	Difficulty    models.Difficulty `json:"difficulty,omitempty"`
	TimerDuration int               `json:"timerDuration,omitempty"`
}

type GuessSubmittedRequest struct {
	RoomCode  string              `json:"roomCode"`
	Guess     *models.Coordinates `json:"guess"`
	Timestamp int64               `json:"timestamp,omitempty"`
}

type RematchRequest struct {
	RoomCode string `json:"roomCode"`
}

type RestoreSessionRequest struct {
	PreviousConnectionID string `json:"previousConnectionId"`
	RoomCode             string `json:"roomCode"`
}

type PingRequest struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Ack is the single reply to every request, sent only to the requester.
type Ack struct {
	RequestID string        `json:"requestId,omitempty"`
	Event     Type          `json:"event"`
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *models.Error `json:"error,omitempty"`
}

// Response and broadcast payloads.

type ConnectSuccessPayload struct {
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

type PongPayload struct {
	Timestamp  int64 `json:"timestamp"`
	ServerTime int64 `json:"serverTime"`
}

type RoomPlayerPayload struct {
	Room   models.Room   `json:"room"`
	Player models.Player `json:"player"`
}

type SessionRestoredPayload struct {
	Room        models.Room   `json:"room"`
	Player      models.Player `json:"player"`
	Reconnected bool          `json:"reconnected"`
}

type RoomUpdatedPayload struct {
	Room models.Room `json:"room"`
}

type PlayerJoinedPayload struct {
	Player models.Player `json:"player"`
	Room   models.Room   `json:"room"`
}

type PlayerLeftPayload struct {
	PlayerID string      `json:"playerId"`
	Room     models.Room `json:"room"`
}

type PlayerReadyChangedPayload struct {
	PlayerID string      `json:"playerId"`
	IsReady  bool        `json:"isReady"`
	Room     models.Room `json:"room"`
}

// CityInfo is a city as revealed at game start.
type CityInfo struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GameStartedPayload struct {
	RoomCode      string            `json:"roomCode"`
	Difficulty    models.Difficulty `json:"difficulty"`
	TimerDuration int               `json:"timerDuration"`
	Cities        []CityInfo        `json:"cities"`
	RoundNumber   int               `json:"roundNumber"`
	TotalRounds   int               `json:"totalRounds"`
}

// CityTarget names a round's target without its position.
type CityTarget struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type RoundStartedPayload struct {
	RoomCode      string     `json:"roomCode"`
	RoundNumber   int        `json:"roundNumber"`
	TotalRounds   int        `json:"totalRounds"`
	CityTarget    CityTarget `json:"cityTarget"`
	StartTime     int64      `json:"startTime"`
	TimerDuration int        `json:"timerDuration"`
}

type PlayerGuessedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	HasGuessed bool   `json:"hasGuessed"`
}

type GuessAcceptedPayload struct {
	Distance int `json:"distance"`
	Score    int `json:"score"`
}

type TargetCity struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type RoundCompletePayload struct {
	RoundNumber int                `json:"roundNumber"`
	TargetCity  TargetCity         `json:"targetCity"`
	Results     []game.RoundResult `json:"results"`
	Standings   []game.Standing    `json:"standings"`
}

type CountdownTickPayload struct {
	RoundNumber      int `json:"roundNumber"`
	RemainingSeconds int `json:"remainingSeconds"`
}

type GameCompletePayload struct {
	RoomCode       string               `json:"roomCode"`
	FinalStandings []game.FinalStanding `json:"finalStandings"`
	Winner         *game.Standing       `json:"winner"`
}

type RematchStatusPayload struct {
	PlayersReady []string `json:"playersReady"`
	TotalPlayers int      `json:"totalPlayers"`
}

type RematchCountdownPayload struct {
	Countdown int `json:"countdown"`
}

type PlayerDepartedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// NewCityInfos reveals cities for the game:started payload.
func NewCityInfos(cities []models.City) []CityInfo {
	out := make([]CityInfo, len(cities))
	for i, c := range cities {
		out[i] = CityInfo{Name: c.Name, Country: c.Country, Latitude: c.Latitude, Longitude: c.Longitude}
	}
	return out
}

// NewTargetCity reveals a round's target once the round is over.
func NewTargetCity(c models.City) TargetCity {
	return TargetCity{Name: c.Name, Country: c.Country, Lat: c.Latitude, Lng: c.Longitude}
}
