// Package publisher ships game lifecycle events to NATS JetStream for
// downstream consumers such as analytics.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types. They double as the subject suffix.
const (
	EventGameStarted    = "game.started"
	EventRoundCompleted = "round.completed"
	EventGameCompleted  = "game.completed"
)

// Event is one published lifecycle fact about a room's game.
type Event struct {
	ID        string    `json:"eventId"`
	Type      string    `json:"eventType"`
	RoomCode  string    `json:"roomCode"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps a fresh id on an event.
func NewEvent(eventType, roomCode string, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		RoomCode:  roomCode,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoOpPublisher discards events. It is used when no bus is configured.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, Event) error { return nil }
func (NoOpPublisher) Close() error                         { return nil }

// Payloads of the lifecycle events.

type GameStartedPayload struct {
	Difficulty    string   `json:"difficulty"`
	TimerDuration int      `json:"timerDuration"`
	Players       []string `json:"players"`
	Cities        []string `json:"cities"`
	Rematch       bool     `json:"rematch"`
}

type RoundCompletedPayload struct {
	RoundNumber   int      `json:"roundNumber"`
	City          string   `json:"city"`
	Guesses       int      `json:"guesses"`
	AutoSubmitted []string `json:"autoSubmitted,omitempty"`
	TimedOut      bool     `json:"timedOut"`
	DurationMs    int64    `json:"durationMs"`
}

type GameCompletedPayload struct {
	WinnerID    string `json:"winnerId,omitempty"`
	WinnerScore int    `json:"winnerScore"`
	Players     int    `json:"players"`
}
