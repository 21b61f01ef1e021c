package orchestrator

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/geoquest/go/internal/events"
	"github.com/mcdev12/geoquest/go/internal/game"
	"github.com/mcdev12/geoquest/go/internal/models"
	"github.com/mcdev12/geoquest/go/internal/publisher"
)

func (o *Orchestrator) handleStartGame(connectionID string, req events.StartGameRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}

	var resp events.RoomUpdatedPayload
	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		if err := o.registry.CheckStart(req.RoomCode, connectionID); err != nil {
			return err
		}

		settings, err := o.settingsFor(req)
		if err != nil {
			return err
		}

		picked := o.pickCities(settings.Difficulty, models.TotalRounds)
		if len(picked) < models.TotalRounds {
			return models.NewError(models.CodeInternal, "failed to select sufficient cities for game")
		}

		room, err := o.registry.BeginGame(req.RoomCode, connectionID, settings)
		if err != nil {
			return err
		}
		if err := o.launchGame(st, room, settings, picked, false); err != nil {
			return err
		}

		resp = events.RoomUpdatedPayload{Room: room}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// settingsFor applies defaults and validates the requested settings.
func (o *Orchestrator) settingsFor(req events.StartGameRequest) (models.GameSettings, error) {
	s := models.GameSettings{Difficulty: req.Difficulty, TimerSeconds: req.TimerDuration}
	if s.Difficulty == "" {
		s.Difficulty = o.cfg.DefaultDifficulty
	}
	if s.TimerSeconds == 0 {
		s.TimerSeconds = o.cfg.DefaultTimer
	}
	if !s.Difficulty.Valid() {
		return s, models.ErrValidation("invalid difficulty %q", s.Difficulty)
	}
	if !models.ValidTimer(s.TimerSeconds, o.cfg.AllowedTimers) {
		return s, models.ErrValidation("invalid timer duration %d, must be one of %v", s.TimerSeconds, o.cfg.AllowedTimers)
	}
	return s, nil
}

// launchGame creates the room's game session and opens round one. It is the
// shared path for a host start and a rematch. The room lock is held.
func (o *Orchestrator) launchGame(st *roomState, room models.Room, settings models.GameSettings, picked []models.City, rematch bool) error {
	sess, err := o.games.Create(room.Code, picked, settings.Difficulty, settings.TimerSeconds, room.Players, game.Deps{
		Clock:    o.clock,
		Distance: o.distance,
		Score:    o.score,
		Locker:   &st.mu,
	})
	if err != nil {
		return models.NewError(models.CodeInternal, "failed to create game session")
	}

	log.Info().
		Str("room_code", room.Code).
		Str("difficulty", string(settings.Difficulty)).
		Int("timer_seconds", settings.TimerSeconds).
		Bool("rematch", rematch).
		Msg("game starting")

	o.broadcast(room.Code, events.TypeGameStarted, events.GameStartedPayload{
		RoomCode:      room.Code,
		Difficulty:    settings.Difficulty,
		TimerDuration: settings.TimerSeconds,
		Cities:        events.NewCityInfos(sess.Cities),
		RoundNumber:   sess.CurrentRound,
		TotalRounds:   sess.TotalRounds,
	})

	cityNames := make([]string, len(sess.Cities))
	for i, c := range sess.Cities {
		cityNames[i] = c.Name
	}
	o.publish(publisher.EventGameStarted, room.Code, publisher.GameStartedPayload{
		Difficulty:    string(settings.Difficulty),
		TimerDuration: settings.TimerSeconds,
		Players:       sess.Players(),
		Cities:        cityNames,
		Rematch:       rematch,
	})

	o.startRound(st, room.Code, sess)
	return nil
}

// startRound opens the session's current round and arms its timer.
func (o *Orchestrator) startRound(st *roomState, code string, sess *game.Session) {
	start := sess.StartRound()
	city := sess.CurrentCity()

	o.broadcast(code, events.TypeRoundStarted, events.RoundStartedPayload{
		RoomCode:      code,
		RoundNumber:   sess.CurrentRound,
		TotalRounds:   sess.TotalRounds,
		CityTarget:    events.CityTarget{Name: city.Name, Country: city.Country},
		StartTime:     start.UnixMilli(),
		TimerDuration: sess.TimerSeconds,
	})

	sess.StartRoundTimer(o.safe("round timer", code, func() {
		log.Info().Str("room_code", code).Int("round", sess.CurrentRound).Msg("round timer expired")
		o.completeRound(st, code, sess)
	}))
}

func (o *Orchestrator) handleGuess(connectionID string, req events.GuessSubmittedRequest) (any, error) {
	if err := requireRoomCode(req.RoomCode); err != nil {
		return nil, err
	}
	if req.Guess == nil {
		return nil, models.ErrValidation("guess is required")
	}

	var resp events.GuessAcceptedPayload
	err := o.withRoom(req.RoomCode, func(st *roomState) error {
		sess := o.games.Get(req.RoomCode)
		if sess == nil {
			return models.ErrValidation("no game in progress in room %s", req.RoomCode)
		}

		ts := req.Timestamp
		if ts == 0 {
			ts = o.clock.Now().UnixMilli()
		}
		res, err := sess.AddGuess(connectionID, *req.Guess, ts)
		if err != nil {
			return err
		}

		name, _ := sess.PlayerName(connectionID)
		o.broadcast(req.RoomCode, events.TypePlayerGuessed, events.PlayerGuessedPayload{
			PlayerID:   connectionID,
			PlayerName: name,
			HasGuessed: true,
		})

		log.Debug().
			Str("room_code", req.RoomCode).
			Str("connection_id", connectionID).
			Int("round", sess.CurrentRound).
			Int("distance_km", res.Distance).
			Int("score", res.Score).
			Msg("guess submitted")

		if res.IsRoundComplete {
			o.completeRound(st, req.RoomCode, sess)
		}

		resp = events.GuessAcceptedPayload{Distance: res.Distance, Score: res.Score}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// completeRound is the single path that ends a round, whether every player
// guessed or the timer fired. It runs once per round. The room lock is held.
func (o *Orchestrator) completeRound(st *roomState, code string, sess *game.Session) {
	if o.games.Get(code) != sess {
		return
	}
	timedOut := !sess.RoundTimerActive()
	if !sess.CloseRound() {
		return
	}
	elapsed := o.clock.Now().Sub(sess.RoundStartTime())

	filled := sess.AutoSubmitMissingGuesses()
	city := sess.CurrentCity()
	round := sess.CurrentRound

	o.broadcast(code, events.TypeRoundComplete, events.RoundCompletePayload{
		RoundNumber: round,
		TargetCity:  events.NewTargetCity(city),
		Results:     sess.CalculateRoundResults(),
		Standings:   sess.Standings(),
	})
	o.publish(publisher.EventRoundCompleted, code, publisher.RoundCompletedPayload{
		RoundNumber:   round,
		City:          city.Name,
		Guesses:       sess.GuessCount(),
		AutoSubmitted: filled,
		TimedOut:      timedOut,
		DurationMs:    elapsed.Milliseconds(),
	})

	log.Info().
		Str("room_code", code).
		Int("round", round).
		Int("auto_submitted", len(filled)).
		Bool("timed_out", timedOut).
		Dur("elapsed", elapsed).
		Msg("round complete")

	from := o.cfg.AdvanceCountdown
	if sess.IsFinalRound() {
		from = o.cfg.FinalCountdown
	}
	st.advance.Start(from,
		func(remaining int) {
			o.broadcast(code, events.TypeCountdownTick, events.CountdownTickPayload{
				RoundNumber:      round,
				RemainingSeconds: remaining,
			})
		},
		o.safe("advance countdown", code, func() { o.advance(st, code, sess) }),
	)
}

// advance runs when the post-round countdown reaches zero: it either ends the
// game or opens the next round. The room lock is held.
func (o *Orchestrator) advance(st *roomState, code string, sess *game.Session) {
	if o.games.Get(code) != sess {
		return
	}

	if !sess.AdvanceRound() {
		o.finishGame(code, sess)
		return
	}
	o.startRound(st, code, sess)
}

func (o *Orchestrator) finishGame(code string, sess *game.Session) {
	final := sess.FinalStandings()

	if _, err := o.registry.FinishGame(code); err != nil {
		log.Warn().Err(err).Str("room_code", code).Msg("room vanished before game completion")
	}

	o.broadcast(code, events.TypeGameComplete, events.GameCompletePayload{
		RoomCode:       code,
		FinalStandings: final.FinalStandings,
		Winner:         final.Winner,
	})

	payload := publisher.GameCompletedPayload{Players: len(final.FinalStandings)}
	if final.Winner != nil {
		payload.WinnerID = final.Winner.PlayerID
		payload.WinnerScore = final.Winner.TotalScore
	}
	o.publish(publisher.EventGameCompleted, code, payload)

	log.Info().Str("room_code", code).Msg("game complete")
}
