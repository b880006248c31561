// Package led drives the three indicator outputs and the round-timing
// signals built on them.
// File: led/led.go
package led

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go-button-wars/hal"
	"go-button-wars/models"
)

// Led is an output with a role.
type Led struct {
	role  models.LedRole
	out   hal.Output
	clock clockwork.Clock
}

// New wraps out and turns it off.
func New(role models.LedRole, out hal.Output, clock clockwork.Clock) *Led {
	out.Low()
	return &Led{role: role, out: out, clock: clock}
}

func (l *Led) Role() models.LedRole { return l.role }
func (l *Led) TurnOn()              { l.out.High() }
func (l *Led) TurnOff()             { l.out.Low() }
func (l *Led) IsOn() bool           { return l.out.IsHigh() }

// FlashPattern blinks the LED repeats times, d on then d off. The LED is
// left off, including when ctx ends early.
func (l *Led) FlashPattern(ctx context.Context, d time.Duration, repeats int) error {
	defer l.out.Low()
	for i := 0; i < repeats; i++ {
		l.out.Low()
		l.out.High()
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
		l.out.Low()
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (l *Led) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-l.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (l *Led) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("role", l.role).Bool("on", l.out.IsHigh())
}
