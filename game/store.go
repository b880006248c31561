// file: game/store.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/shared"
	"go-button-wars/telemetry"
)

// ErrNotInitialized means the instance went missing after Initialize.
var ErrNotInitialized = errors.New("game singleton not initialized")

// FailSafe is armed when the instance is lost.
type FailSafe interface {
	Arm(reason string)
}

// Store is the single shared game instance. All access goes through its
// lock. Before Initialize, first use constructs a Waiting game. After
// Initialize, a missing instance is a fault: the accessor arms the fail-safe
// and blocks until ctx ends instead of guessing a state.
type Store struct {
	cell        *shared.Cell[*Game]
	initialized atomic.Bool
	clock       clockwork.Clock
	failSafe    FailSafe
	sink        telemetry.Sink
}

// NewStore returns an empty store.
func NewStore(clock clockwork.Clock, failSafe FailSafe, sink telemetry.Sink) *Store {
	return &Store{
		cell:     shared.NewCell[*Game]("game", nil, clock),
		clock:    clock,
		failSafe: failSafe,
		sink:     telemetry.OrNop(sink),
	}
}

// Initialize installs a fresh Waiting game. From here on a missing instance
// is treated as corruption.
func (s *Store) Initialize(ctx context.Context) error {
	err := s.cell.Do(ctx, func(g **Game) error {
		*g = newGame(s.clock.Now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize game: %w", err)
	}
	s.initialized.Store(true)
	logger.Info().Msg("[Store.Initialize] ✅ Game singleton initialized in Waiting")
	return nil
}

// access runs fn on the instance under the lock.
func (s *Store) access(ctx context.Context, op string, fn func(g *Game) error) error {
	err := s.cell.Do(ctx, func(g **Game) error {
		if *g == nil {
			if s.initialized.Load() {
				return ErrNotInitialized
			}
			*g = newGame(s.clock.Now())
			logger.Info().Str("op", op).Msg("[Store.access] Constructed default game on first use")
		}
		return fn(*g)
	})
	if errors.Is(err, ErrNotInitialized) {
		return s.reset(ctx, op)
	}
	return err
}

// reset is the singleton-loss path: arm the fail-safe so the watchdog
// starves, then park until the device goes down.
func (s *Store) reset(ctx context.Context, op string) error {
	logger.Error().Str("op", op).Msg("[Store.reset] ❌ Game singleton missing, arming fail-safe")
	if s.failSafe != nil {
		s.failSafe.Arm("game singleton missing during " + op)
	}
	<-ctx.Done()
	return fmt.Errorf("%w: %w", ErrNotInitialized, ctx.Err())
}

// StateOrReset returns the current state, or takes the reset path.
func (s *Store) StateOrReset(ctx context.Context) (models.GameState, error) {
	var st models.GameState
	err := s.access(ctx, "StateOrReset", func(g *Game) error {
		st = g.State
		return nil
	})
	return st, err
}

// Transition moves the game to next and publishes a state event when it changed.
func (s *Store) Transition(ctx context.Context, next models.GameState) error {
	var (
		changed bool
		from    models.GameState
		spent   int64
	)
	now := s.clock.Now()
	err := s.access(ctx, "Transition", func(g *Game) error {
		from = g.State
		spent = now.Sub(g.StateStart).Milliseconds()
		changed = g.Transition(next, now)
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.sink.Publish(telemetry.Event{
			Type: telemetry.EventState,
			Time: now,
			Data: map[string]interface{}{"from": from.String(), "to": next.String(), "spentMs": spent},
		})
	}
	return nil
}

// UpdateDuration refreshes and logs the time spent in the current state.
func (s *Store) UpdateDuration(ctx context.Context) error {
	return s.access(ctx, "UpdateDuration", func(g *Game) error {
		g.UpdateDuration(s.clock.Now())
		return nil
	})
}

// Snapshot returns a copy of the game with a fresh duration.
func (s *Store) Snapshot(ctx context.Context) (Game, error) {
	var out Game
	err := s.access(ctx, "Snapshot", func(g *Game) error {
		g.UpdateDuration(s.clock.Now())
		out = *g
		return nil
	})
	return out, err
}

// Clear drops the instance. After Initialize the next access takes the reset path.
func (s *Store) Clear(ctx context.Context) error {
	logger.Warn().Msg("[Store.Clear] Dropping game singleton")
	return s.cell.Store(ctx, nil)
}
