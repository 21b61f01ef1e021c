// Package config reads process settings from the environment and the optional
// game settings file.
package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the process settings.
type Config struct {
	Port        string
	CORSOrigins []string
	Env         string
	LogLevel    string

	// NATSURL enables the lifecycle event publisher when set.
	NATSURL    string
	NATSStream string

	GameConfigPath string
	Game           GameConfig
}

// GameConfig holds the tunable game rules. Zero values in a settings file
// leave the defaults in place.
type GameConfig struct {
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	RoomTimeout       time.Duration `yaml:"room_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	AllowedTimers     []int         `yaml:"allowed_timers"`
	DefaultTimer      int           `yaml:"default_timer"`
	DefaultDifficulty string        `yaml:"default_difficulty"`
	AdvanceCountdown  int           `yaml:"advance_countdown"`
	FinalCountdown    int           `yaml:"final_countdown"`
	RematchCountdown  int           `yaml:"rematch_countdown"`
	DefaultMaxPlayers int           `yaml:"default_max_players"`
	MaxNameLength     int           `yaml:"max_name_length"`
	RateLimit         float64       `yaml:"rate_limit"`
	RateBurst         int           `yaml:"rate_burst"`
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		SessionTimeout:    5 * time.Minute,
		RoomTimeout:       10 * time.Minute,
		SweepInterval:     time.Minute,
		AllowedTimers:     []int{15, 30, 45, 60},
		DefaultTimer:      30,
		DefaultDifficulty: "medium",
		AdvanceCountdown:  10,
		FinalCountdown:    5,
		RematchCountdown:  10,
		DefaultMaxPlayers: 5,
		MaxNameLength:     32,
		RateLimit:         20,
		RateBurst:         40,
	}
}

// Validate reports the first inconsistent setting.
func (g GameConfig) Validate() error {
	switch {
	case g.SessionTimeout <= 0 || g.RoomTimeout <= 0 || g.SweepInterval <= 0:
		return fmt.Errorf("timeouts and sweep interval must be positive")
	case len(g.AllowedTimers) == 0:
		return fmt.Errorf("allowed_timers must not be empty")
	case !slices.Contains(g.AllowedTimers, g.DefaultTimer):
		return fmt.Errorf("default_timer %d is not one of allowed_timers %v", g.DefaultTimer, g.AllowedTimers)
	case !slices.Contains([]string{"easy", "medium", "hard"}, g.DefaultDifficulty):
		return fmt.Errorf("default_difficulty %q must be easy, medium or hard", g.DefaultDifficulty)
	case g.AdvanceCountdown < 0 || g.FinalCountdown < 0 || g.RematchCountdown < 0:
		return fmt.Errorf("countdowns must not be negative")
	case g.DefaultMaxPlayers < 2 || g.DefaultMaxPlayers > 5:
		return fmt.Errorf("default_max_players must be between 2 and 5")
	case g.RateLimit <= 0 || g.RateBurst <= 0:
		return fmt.Errorf("rate_limit and rate_burst must be positive")
	}
	for _, t := range g.AllowedTimers {
		if t <= 0 {
			return fmt.Errorf("allowed_timers must be positive, got %d", t)
		}
	}
	return nil
}

// NewConfigFromEnv reads the environment, and the settings file named by
// GAME_CONFIG if any.
func NewConfigFromEnv() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "5001"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGIN", "http://localhost:5173")),
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		NATSURL:        os.Getenv("NATS_URL"),
		NATSStream:     getEnv("NATS_STREAM", "GEOQUEST_EVENTS"),
		GameConfigPath: os.Getenv("GAME_CONFIG"),
		Game:           DefaultGameConfig(),
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %q", cfg.Port)
	}

	if cfg.GameConfigPath != "" {
		game, err := LoadGameConfigFile(cfg.GameConfigPath, cfg.Game)
		if err != nil {
			return Config{}, err
		}
		cfg.Game = game
	}
	return cfg, nil
}

// Production reports whether APP_ENV is production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// LoadGameConfigFile overlays the YAML file at path on base.
func LoadGameConfigFile(path string, base GameConfig) (GameConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return GameConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()
	return LoadGameConfig(f, base)
}

// LoadGameConfig overlays YAML settings read from r on base and validates the result.
func LoadGameConfig(r io.Reader, base GameConfig) (GameConfig, error) {
	var overlay GameConfig
	if err := yaml.NewDecoder(r).Decode(&overlay); err != nil && err != io.EOF {
		return GameConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}

	merged := base
	setDuration(&merged.SessionTimeout, overlay.SessionTimeout)
	setDuration(&merged.RoomTimeout, overlay.RoomTimeout)
	setDuration(&merged.SweepInterval, overlay.SweepInterval)
	if len(overlay.AllowedTimers) > 0 {
		merged.AllowedTimers = overlay.AllowedTimers
	}
	setInt(&merged.DefaultTimer, overlay.DefaultTimer)
	if overlay.DefaultDifficulty != "" {
		merged.DefaultDifficulty = overlay.DefaultDifficulty
	}
	setInt(&merged.AdvanceCountdown, overlay.AdvanceCountdown)
	setInt(&merged.FinalCountdown, overlay.FinalCountdown)
	setInt(&merged.RematchCountdown, overlay.RematchCountdown)
	setInt(&merged.DefaultMaxPlayers, overlay.DefaultMaxPlayers)
	setInt(&merged.MaxNameLength, overlay.MaxNameLength)
	if overlay.RateLimit != 0 {
		merged.RateLimit = overlay.RateLimit
	}
	setInt(&merged.RateBurst, overlay.RateBurst)

	if err := merged.Validate(); err != nil {
		return GameConfig{}, fmt.Errorf("invalid game config: %w", err)
	}
	return merged, nil
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
