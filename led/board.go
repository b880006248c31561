// File: led/board.go
package led

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/models"
)

const (
	readyFlash   = 200 * time.Millisecond
	winnerFlash  = 150 * time.Millisecond
	winnerRepeat = 3

	idleIntro     = 200 * time.Millisecond
	idleChase     = 100 * time.Millisecond
	idlePasses    = 10
	idleRampEvery = 3
	idlePause     = 500 * time.Millisecond
)

// Board holds the three LEDs and plays the round-timing signals.
type Board struct {
	Onboard *Led
	P1      *Led
	P2      *Led
	clock   clockwork.Clock
}

// NewBoard wires the LEDs of a hal.Board.
func NewBoard(b *hal.Board, clock clockwork.Clock) *Board {
	return &Board{
		Onboard: New(models.LedOnboard, b.LedOnboard, clock),
		P1:      New(models.LedPlayer1, b.LedP1, clock),
		P2:      New(models.LedPlayer2, b.LedP2, clock),
		clock:   clock,
	}
}

// For returns the LED with the given role.
func (b *Board) For(role models.LedRole) *Led {
	switch role {
	case models.LedPlayer1:
		return b.P1
	case models.LedPlayer2:
		return b.P2
	default:
		return b.Onboard
	}
}

func (b *Board) all() [3]*Led { return [3]*Led{b.Onboard, b.P1, b.P2} }

// AllOff turns every LED off.
func (b *Board) AllOff() {
	for _, l := range b.all() {
		l.TurnOff()
	}
}

// ReadyCue flashes the onboard LED round+1 times so later rounds get a
// longer warning.
func (b *Board) ReadyCue(ctx context.Context, round int) error {
	b.AllOff()
	logger.Debug().Int("round", round).Msg("[Board.ReadyCue] get ready")
	return b.Onboard.FlashPattern(ctx, readyFlash, round+1)
}

// Go lights both player LEDs.
func (b *Board) Go() {
	b.P1.TurnOn()
	b.P2.TurnOn()
	logger.Debug().Msg("[Board.Go] go!")
}

// Winner clears the go signal and flashes the winner's LED.
func (b *Board) Winner(ctx context.Context, role models.ButtonRole) error {
	b.AllOff()
	return b.For(models.LedFor(role)).FlashPattern(ctx, winnerFlash, winnerRepeat)
}

// Idle plays the waiting display once: two quick flashes per LED, then a
// chase around the board that speeds up every few passes.
func (b *Board) Idle(ctx context.Context) error {
	leds := b.all()
	for _, l := range leds {
		if err := l.FlashPattern(ctx, idleIntro, 2); err != nil {
			return err
		}
	}

	d := idleChase
	for pass := 1; pass <= idlePasses; pass++ {
		for _, l := range leds {
			if err := l.FlashPattern(ctx, d, 1); err != nil {
				return err
			}
		}
		if pass%idleRampEvery == 0 {
			d /= 2
		}
	}

	select {
	case <-b.clock.After(idlePause):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
