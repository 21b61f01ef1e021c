package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/geoquest/go/internal/config"
	"github.com/mcdev12/geoquest/go/internal/gateway"
	"github.com/mcdev12/geoquest/go/internal/publisher"
)

func setupServer(cfg config.Config, services *Services) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           setupHandler(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func setupHandler(cfg config.Config, services *Services) http.Handler {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	gateway.NewWebSocketHandler(services.Connections, services.Orchestrator).RegisterRoutes(mux)
	setupHealthCheck(mux, services)
	setupStats(mux, services)

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		now := services.Clock.Now()
		writeJSON(w, healthResponse{
			Status:    "ok",
			Timestamp: now.UnixMilli(),
			Uptime:    now.Sub(services.StartedAt).Seconds(),
		})
	})
}

type statsResponse struct {
	Rooms        int                     `json:"rooms"`
	Sessions     int                     `json:"sessions"`
	TotalPlayers int                     `json:"totalPlayers"`
	ActiveGames  []string                `json:"activeGames"`
	Connections  int                     `json:"connections"`
	LockedRooms  int                     `json:"lockedRooms"`
	Events       *publisher.CounterStats `json:"events,omitempty"`
	Uptime       float64                 `json:"uptime"`
}

func setupStats(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		stats := services.Orchestrator.Stats()
		resp := statsResponse{
			Rooms:        stats.Rooms.Rooms,
			Sessions:     stats.Rooms.Sessions,
			TotalPlayers: stats.Rooms.TotalPlayers,
			ActiveGames:  stats.Games.ActiveSessions,
			Connections:  services.Connections.Stats().TotalConnections,
			LockedRooms:  stats.LockedRooms,
			Uptime:       services.Clock.Now().Sub(services.StartedAt).Seconds(),
		}
		if services.Events != nil {
			counters := services.EventCounters.Stats()
			resp.Events = &counters
		}
		writeJSON(w, resp)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
