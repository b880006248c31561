// Package engine runs matches: the per-state dispatch loop, the start
// gesture, the rounds and the result summary.
// file: engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go-button-wars/game"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/telemetry"
)

// Timer is a player's button as the engine uses it.
type Timer interface {
	Role() models.ButtonRole
	WaitForFullPress(ctx context.Context) (time.Time, error)
	MeasureSince(ctx context.Context, target time.Time) (time.Time, error)
}

// Signals is the LED choreography the engine drives.
type Signals interface {
	ReadyCue(ctx context.Context, round int) error
	Go()
	Winner(ctx context.Context, role models.ButtonRole) error
	Idle(ctx context.Context) error
	AllOff()
}

// Settings are the match timings.
type Settings struct {
	TotalRounds     int
	RandomDelayMin  time.Duration
	RandomDelayMax  time.Duration
	InterRoundDelay time.Duration
	StartTimeout    time.Duration
}

// Validate checks the settings a match cannot run without.
func (s Settings) Validate() error {
	switch {
	case s.TotalRounds < 1:
		return fmt.Errorf("total rounds must be >= 1, got %d", s.TotalRounds)
	case s.RandomDelayMin < 0 || s.RandomDelayMax < s.RandomDelayMin:
		return fmt.Errorf("invalid random delay range [%v, %v]", s.RandomDelayMin, s.RandomDelayMax)
	case s.InterRoundDelay < 0:
		return fmt.Errorf("inter-round delay must be >= 0, got %v", s.InterRoundDelay)
	case s.StartTimeout <= 0:
		return fmt.Errorf("start timeout must be positive, got %v", s.StartTimeout)
	}
	return nil
}

// Deps are the collaborators of an Engine.
type Deps struct {
	P1, P2  Timer
	Signals Signals
	Store   *game.Store
	Sink    telemetry.Sink
	Clock   clockwork.Clock
	Rand    *rand.Rand
}

// Engine owns the ScoreBoard and RoundRecord; nothing else writes them.
type Engine struct {
	buttons  [2]Timer
	signals  Signals
	store    *game.Store
	sink     telemetry.Sink
	clock    clockwork.Clock
	rnd      *rand.Rand
	settings Settings

	// Overridable in tests.
	sleepFunc func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	scores     models.ScoreBoard
	record     *models.RoundRecord
	matchID    string
	matchStart time.Time
	last       *models.MatchStats
}

// New validates settings and wires the engine.
func New(d Deps, s Settings) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if d.P1 == nil || d.P2 == nil || d.Signals == nil || d.Store == nil {
		return nil, errors.New("engine needs both buttons, signals and a game store")
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(d.Clock.Now().UnixNano()))
	}
	e := &Engine{
		buttons:  [2]Timer{d.P1, d.P2},
		signals:  d.Signals,
		store:    d.Store,
		sink:     telemetry.OrNop(d.Sink),
		clock:    d.Clock,
		rnd:      d.Rand,
		settings: s,
		scores:   models.NewScoreBoard(),
		record:   models.NewRoundRecord(s.TotalRounds),
	}
	e.sleepFunc = e.sleep
	return e, nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-e.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------- dispatch loop -----------------

// Run dispatches on the game state until ctx ends or the store takes the
// reset path.
func (e *Engine) Run(ctx context.Context) error {
	logger.Info().Int("rounds", e.settings.TotalRounds).Msg("[Engine.Run] Game loop started")
	for {
		state, err := e.store.StateOrReset(ctx)
		if err != nil {
			return err
		}
		if err := e.store.UpdateDuration(ctx); err != nil {
			return err
		}

		switch state {
		case models.Waiting:
			if err := e.EnterWaiting(ctx); err != nil {
				return err
			}
			err = e.store.Transition(ctx, models.Playing)
		case models.Playing:
			err = e.PlayMatch(ctx)
		case models.ComputingResults:
			if _, ok := e.ComputeResults(ctx); !ok {
				logger.Warn().Msg("[Engine.Run] Match ended without a winner")
			}
			err = e.store.Transition(ctx, models.Finished)
		case models.Finished:
			err = e.store.Transition(ctx, models.Waiting)
		default:
			err = fmt.Errorf("unknown game state %v", state)
		}
		if err != nil {
			return err
		}
	}
}

// --------------- waiting -----------------

// EnterWaiting clears the previous match, then listens for a start press
// from either player while the idle pattern loops on the LEDs. The press
// wait is re-armed every StartTimeout; the idle display stops as soon as a
// press wins.
func (e *Engine) EnterWaiting(ctx context.Context) error {
	e.mu.Lock()
	e.scores.Reset()
	e.record.Clear()
	e.mu.Unlock()
	e.signals.AllOff()
	logger.Info().Msg("[Engine.EnterWaiting] Scores and rounds cleared, waiting for a start press")

	idleCtx, stopIdle := context.WithCancel(ctx)
	idleDone := make(chan struct{})
	go func() {
		defer close(idleDone)
		e.idleLoop(idleCtx)
	}()
	defer func() {
		stopIdle()
		<-idleDone
		e.signals.AllOff()
	}()

	for {
		waitCtx, cancel := clockwork.WithTimeout(ctx, e.clock, e.settings.StartTimeout)
		role, _, err := e.race(waitCtx, func(ctx context.Context, b Timer) (time.Time, error) {
			return b.WaitForFullPress(ctx)
		})
		cancel()
		if err == nil {
			logger.Info().Stringer("role", role).Msg("[Engine.EnterWaiting] ✅ Start pressed")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logger.Debug().Dur("timeout", e.settings.StartTimeout).Msg("[Engine.EnterWaiting] No start press, still waiting")
	}
}

// idleLoop replays the idle display until ctx ends.
func (e *Engine) idleLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if err := e.signals.Idle(ctx); err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("[Engine.idleLoop] Idle display failed")
			}
			return
		}
	}
}

// --------------- playing -----------------

// PlayMatch plays rounds until a player reaches the win threshold, then
// moves the game to ComputingResults.
func (e *Engine) PlayMatch(ctx context.Context) error {
	threshold := models.WinThreshold(e.settings.TotalRounds)

	e.mu.Lock()
	e.matchID = uuid.NewString()
	e.matchStart = e.clock.Now()
	matchID := e.matchID
	e.mu.Unlock()

	logger.Info().Str("match", matchID).Int("rounds", e.settings.TotalRounds).Int("threshold", threshold).
		Msg("[Engine.PlayMatch] 🚀 Match started")
	e.publish(telemetry.EventMatchStarted, map[string]interface{}{
		"totalRounds": e.settings.TotalRounds,
		"threshold":   threshold,
	})

	for i := 0; i < e.settings.TotalRounds; i++ {
		winner, ms, err := e.PlayRound(ctx, i)
		if err != nil {
			return err
		}

		e.mu.Lock()
		total := e.scores.Increment(winner)
		err = e.record.Record(i, winner, ms)
		scores := e.scoresLocked()
		e.mu.Unlock()
		if err != nil {
			return fmt.Errorf("record round %d: %w", i, err)
		}

		logger.Info().Str("match", matchID).Int("round", i).Stringer("winner", winner).
			Int64("response_ms", ms).Int("p1", scores["Player1"]).Int("p2", scores["Player2"]).
			Msg("[Engine.PlayMatch] Round result")
		e.publish(telemetry.EventRound, map[string]interface{}{
			"round":      i,
			"winner":     winner.String(),
			"responseMs": ms,
			"scores":     scores,
		})

		if total >= threshold {
			logger.Info().Str("match", matchID).Stringer("winner", winner).Msg("[Engine.PlayMatch] Win threshold reached")
			return e.store.Transition(ctx, models.ComputingResults)
		}

		if err := e.signals.Winner(ctx, winner); err != nil {
			return err
		}
		if i < e.settings.TotalRounds-1 {
			if err := e.sleepFunc(ctx, e.settings.InterRoundDelay); err != nil {
				return err
			}
		}
	}
	return e.store.Transition(ctx, models.ComputingResults)
}

// PlayRound plays round i: ready cue, random delay, go, then a race of both
// buttons. It returns the winner and the response time in ms, never negative.
func (e *Engine) PlayRound(ctx context.Context, i int) (models.ButtonRole, int64, error) {
	if err := e.signals.ReadyCue(ctx, i); err != nil {
		return 0, 0, err
	}
	delay := e.randomDelay()
	logger.Debug().Int("round", i).Dur("delay", delay).Msg("[Engine.PlayRound] Waiting before go")
	if err := e.sleepFunc(ctx, delay); err != nil {
		return 0, 0, err
	}

	target := e.clock.Now()
	e.signals.Go()

	winner, released, err := e.race(ctx, func(ctx context.Context, b Timer) (time.Time, error) {
		return b.MeasureSince(ctx, target)
	})
	if err != nil {
		return 0, 0, err
	}
	ms := released.Sub(target).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return winner, ms, nil
}

func (e *Engine) randomDelay() time.Duration {
	span := int64(e.settings.RandomDelayMax - e.settings.RandomDelayMin)
	return e.settings.RandomDelayMin + time.Duration(e.rnd.Int63n(span+1))
}

type raceResult struct {
	role models.ButtonRole
	at   time.Time
	err  error
}

// race runs wait on both buttons and returns the first to succeed. The
// loser is cancelled and waited for before race returns so it cannot touch
// the next round.
func (e *Engine) race(ctx context.Context, wait func(context.Context, Timer) (time.Time, error)) (models.ButtonRole, time.Time, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	results := make(chan raceResult, len(e.buttons))
	var wg sync.WaitGroup
	for _, b := range e.buttons {
		wg.Add(1)
		go func(b Timer) {
			defer wg.Done()
			at, err := wait(raceCtx, b)
			results <- raceResult{role: b.Role(), at: at, err: err}
		}(b)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	var firstErr error
	for range e.buttons {
		r := <-results
		if r.err == nil {
			return r.role, r.at, nil
		}
		if firstErr == nil {
			firstErr = r.err
		}
	}
	return 0, time.Time{}, firstErr
}

// --------------- results -----------------

// ComputeResults summarizes the match for its winner. ok is false when
// nobody won a round.
func (e *Engine) ComputeResults(ctx context.Context) (models.MatchStats, bool) {
	e.mu.Lock()
	winner, hasLeader := e.scores.Leader()
	var (
		stats models.MatchStats
		ok    bool
	)
	if hasLeader {
		stats, ok = models.ComputeMatchStats(winner, e.record)
		stats.Duration = e.clock.Since(e.matchStart)
	}
	if ok {
		s := stats
		e.last = &s
	}
	matchID := e.matchID
	e.mu.Unlock()

	if !ok {
		return stats, false
	}
	logger.Info().Str("match", matchID).Stringer("winner", stats.Winner).Int("wins", stats.Wins).
		Int64("min_ms", stats.MinMs).Int64("max_ms", stats.MaxMs).Float64("avg_ms", stats.AverageMs).
		Dur("duration", stats.Duration).Msg("[Engine.ComputeResults] 🏆 Match result")
	e.publish(telemetry.EventMatchResult, map[string]interface{}{
		"winner":     stats.Winner.String(),
		"wins":       stats.Wins,
		"minMs":      stats.MinMs,
		"maxMs":      stats.MaxMs,
		"averageMs":  stats.AverageMs,
		"durationMs": stats.Duration.Milliseconds(),
	})
	if err := e.signals.Winner(ctx, stats.Winner); err != nil {
		logger.Debug().Err(err).Msg("[Engine.ComputeResults] winner signal interrupted")
	}
	return stats, true
}

// --------------- status -----------------

// Status is a read-only view of the current match.
type Status struct {
	MatchID   string               `json:"matchId,omitempty"`
	Scores    map[string]int       `json:"scores"`
	Rounds    []models.RoundResult `json:"rounds"`
	LastMatch *models.MatchStats   `json:"lastMatch,omitempty"`
}

// Status is safe to call from any goroutine.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Status{
		MatchID: e.matchID,
		Scores:  e.scoresLocked(),
		Rounds:  e.record.Results(),
	}
	if e.last != nil {
		last := *e.last
		st.LastMatch = &last
	}
	return st
}

func (e *Engine) scoresLocked() map[string]int {
	out := make(map[string]int, len(models.Roles))
	for _, r := range models.Roles {
		out[r.String()] = e.scores[r]
	}
	return out
}

func (e *Engine) publish(typ string, data map[string]interface{}) {
	e.mu.RLock()
	id := e.matchID
	e.mu.RUnlock()
	e.sink.Publish(telemetry.Event{Type: typ, Time: e.clock.Now(), MatchID: id, Data: data})
}
