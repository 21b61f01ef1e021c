package publisher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultPublishTimeout = 5 * time.Second

// Async queues events so callers holding a room lock never wait on the bus.
// Run drains the queue.
type Async struct {
	pub     Publisher
	metrics MetricsCollector
	queue   chan Event
	timeout time.Duration
}

// NewAsync wraps pub with a queue of size events.
func NewAsync(pub Publisher, metrics MetricsCollector, size int) *Async {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Async{
		pub:     pub,
		metrics: metrics,
		queue:   make(chan Event, size),
		timeout: defaultPublishTimeout,
	}
}

// Enqueue adds an event without blocking. It reports false when the queue is full.
func (a *Async) Enqueue(event Event) bool {
	select {
	case a.queue <- event:
		return true
	default:
		a.metrics.RecordDropped(event.Type)
		log.Warn().
			Str("event_type", event.Type).
			Str("room_code", event.RoomCode).
			Msg("publish queue full, dropping event")
		return false
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is left.
func (a *Async) Run(ctx context.Context) {
	log.Info().Msg("event publisher started")
	for {
		select {
		case <-ctx.Done():
			a.drain()
			log.Info().Msg("event publisher stopped")
			return
		case event := <-a.queue:
			a.publish(context.Background(), event)
		}
	}
}

func (a *Async) drain() {
	for {
		select {
		case event := <-a.queue:
			a.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (a *Async) publish(parent context.Context, event Event) {
	ctx, cancel := context.WithTimeout(parent, a.timeout)
	defer cancel()

	start := time.Now()
	err := a.pub.Publish(ctx, event)
	a.metrics.RecordPublished(event.Type, err == nil, time.Since(start))
	if err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("room_code", event.RoomCode).
			Msg("failed to publish event")
	}
}
