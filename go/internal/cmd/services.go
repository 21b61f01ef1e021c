package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/geoquest/go/internal/cities"
	"github.com/mcdev12/geoquest/go/internal/clock"
	"github.com/mcdev12/geoquest/go/internal/config"
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/gateway"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/orchestrator"
	"github.com/mcdev12/geoquest/go/internal/publisher"
	"github.com/mcdev12/geoquest/go/internal/rooms"
)

const eventQueueSize = 1024

type Services struct {
	Clock        clock.Clock
	Registry     *rooms.Registry
	Games        *game.Manager
	Connections  *gateway.ConnectionManager
	Orchestrator *orchestrator.Orchestrator

	// Events is nil when no NATS_URL is configured.
	Events        *publisher.Async
	EventCounters *publisher.Counters
	publisher     publisher.Publisher

	StartedAt time.Time
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Clock → Registry/Games → Connections → Orchestrator
	clk := clockwork.NewRealClock()
	g := cfg.Game

	registry := rooms.NewRegistry(clk, rooms.Config{
		SessionTimeout:    g.SessionTimeout,
		RoomTimeout:       g.RoomTimeout,
		DefaultMaxPlayers: g.DefaultMaxPlayers,
		DefaultSettings: models.GameSettings{
			Difficulty:   models.Difficulty(g.DefaultDifficulty),
			TimerSeconds: g.DefaultTimer,
		},
	})
	games := game.NewManager()

	connCfg := gateway.DefaultConnectionConfig()
	connCfg.AllowedOrigins = cfg.CORSOrigins
	connCfg.RateLimit = rate.Limit(g.RateLimit)
	connCfg.RateBurst = g.RateBurst
	connections := gateway.NewConnectionManager(connCfg)

	s := &Services{
		Clock:         clk,
		Registry:      registry,
		Games:         games,
		Connections:   connections,
		EventCounters: &publisher.Counters{},
		StartedAt:     clk.Now(),
	}

	if cfg.NATSURL != "" {
		jsCfg := publisher.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.StreamName = cfg.NATSStream
		pub, err := publisher.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		s.publisher = pub
		s.Events = publisher.NewAsync(pub, s.EventCounters, eventQueueSize)
	}

	catalog := cities.Default()
	log.Info().
		Int("cities", len(catalog)).
		Interface("by_tier", cities.CountByTier(catalog)).
		Msg("city catalog loaded")

	deps := orchestrator.Deps{
		Registry:   registry,
		Games:      games,
		Transport:  connections,
		Clock:      clk,
		PickCities: cities.NewPicker(catalog, nil).Pick,
	}
	if s.Events != nil {
		deps.Events = s.Events
	}

	orch, err := orchestrator.New(orchestrator.Config{
		AllowedTimers:     g.AllowedTimers,
		DefaultTimer:      g.DefaultTimer,
		DefaultDifficulty: models.Difficulty(g.DefaultDifficulty),
		AdvanceCountdown:  g.AdvanceCountdown,
		FinalCountdown:    g.FinalCountdown,
		RematchCountdown:  g.RematchCountdown,
		SweepInterval:     g.SweepInterval,
		MaxNameLength:     g.MaxNameLength,
	}, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	s.Orchestrator = orch

	return s, nil
}

// Start runs the background workers. The returned channel closes once they
// have all stopped after ctx is cancelled.
func (s *Services) Start(ctx context.Context) <-chan struct{} {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Orchestrator.RunSweeper(ctx)
	}()

	if s.Events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Events.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Close releases the event publisher connection.
func (s *Services) Close() {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
	}
}
