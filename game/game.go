// Package game holds the game state machine and the process-wide instance
// every task reads and mutates through a Store.
// file: game/game.go
package game

import (
	"time"

	"github.com/rs/zerolog"
	"go-button-wars/logger"
	"go-button-wars/models"
)

// Game is the state machine: the current state, when it began and how long
// it has lasted as of the last refresh.
type Game struct {
	State         models.GameState `json:"state"`
	StateStart    time.Time        `json:"stateStart"`
	StateDuration time.Duration    `json:"stateDuration"`
}

func newGame(now time.Time) *Game {
	return &Game{State: models.Waiting, StateStart: now}
}

// UpdateDuration recomputes the time spent in the current state.
func (g *Game) UpdateDuration(now time.Time) {
	d := now.Sub(g.StateStart)
	if d < 0 {
		d = 0
	}
	g.StateDuration = d
	logger.Debug().Object("game", g).Msg("[Game.UpdateDuration]")
}

// Transition moves to next. Moving to the current state only refreshes the
// duration and keeps StateStart. It reports whether the state changed.
func (g *Game) Transition(next models.GameState, now time.Time) bool {
	g.UpdateDuration(now)
	if next == g.State {
		logger.Info().Stringer("state", g.State).Msg("[Game.Transition] Already in state, no transition needed")
		return false
	}
	logger.Info().
		Stringer("from", g.State).
		Stringer("to", next).
		Dur("spent", g.StateDuration).
		Msg("[Game.Transition] Leaving state")

	g.State = next
	g.StateStart = now
	g.StateDuration = 0
	logger.Info().Object("game", g).Msg("[Game.Transition] ✅ Transition finished")
	return true
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (g *Game) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("state", g.State).
		Time("state_start", g.StateStart).
		Dur("state_duration", g.StateDuration)
}
