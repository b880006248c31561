// Package button turns a raw pull-up input into validated press and release
// edges, and times full presses for scoring.
// file: button/button.go
package button

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/shared"
)

// Button is one player's debounced input.
type Button struct {
	role  models.ButtonRole
	input hal.Input
	lock  *shared.Lock
	clock clockwork.Clock

	// calibration poll step; tests shorten it
	pollInterval time.Duration

	mu       sync.RWMutex
	debounce time.Duration
}

// New wraps input. debounce must be positive.
func New(role models.ButtonRole, input hal.Input, clock clockwork.Clock, debounce time.Duration) (*Button, error) {
	if input == nil {
		return nil, errors.New("button input is nil")
	}
	if debounce <= 0 {
		return nil, fmt.Errorf("debounce window must be positive, got %v", debounce)
	}
	b := &Button{
		role:         role,
		input:        input,
		lock:         shared.NewLock("button-"+role.String(), clock),
		clock:        clock,
		pollInterval: calibrationPoll,
		debounce:     debounce,
	}
	logger.Info().Object("button", b).Msg("[button.New] Initializing button")
	return b, nil
}

// Role of the player owning this button.
func (b *Button) Role() models.ButtonRole { return b.role }

// Lock guards access to the sensor. Samples take it briefly; calibration holds
// it for a whole measurement window.
func (b *Button) Lock() *shared.Lock { return b.lock }

// Debounce returns the current debounce window.
func (b *Button) Debounce() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.debounce
}

// SetDebounce replaces the debounce window, e.g. with a calibrated value.
func (b *Button) SetDebounce(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("debounce window must be positive, got %v", d)
	}
	b.mu.Lock()
	b.debounce = d
	b.mu.Unlock()
	logger.Info().Object("button", b).Msg("[Button.SetDebounce] Debounce window updated")
	return nil
}

// MarshalZerologObject logs a snapshot of the button.
func (b *Button) MarshalZerologObject(e *zerolog.Event) {
	e.Str("role", b.role.String()).
		Stringer("level", b.input.Level()).
		Dur("debounce", b.Debounce())
}

// --------------- sampling -----------------

// sample reads the level under the button lock.
func (b *Button) sample(ctx context.Context) (hal.Level, error) {
	if err := b.lock.Lock(ctx); err != nil {
		return hal.High, err
	}
	defer b.lock.Unlock()
	return b.input.Level(), nil
}

// TrySample reads the level if the lock can be had within budget, otherwise
// it returns shared.ErrLockTimeout.
func (b *Button) TrySample(budget time.Duration) (hal.Level, error) {
	if err := b.lock.TryLockFor(budget); err != nil {
		return hal.High, err
	}
	defer b.lock.Unlock()
	return b.input.Level(), nil
}

func (b *Button) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-b.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------- validated edges -----------------

// waitForValidated waits for the input to reach want and stay there for a
// debounce window. It returns the instant the level was first reached.
func (b *Button) waitForValidated(ctx context.Context, want hal.Level) (time.Time, error) {
	for {
		candidate, err := b.input.WaitForLevel(ctx, want)
		if err != nil {
			return time.Time{}, err
		}
		window := b.Debounce()
		if err := b.sleep(ctx, window); err != nil {
			return time.Time{}, err
		}
		level, err := b.sample(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if level == want {
			return candidate, nil
		}
		logger.Trace().
			Str("role", b.role.String()).
			Stringer("want", want).
			Dur("window", window).
			Msg("[Button.waitForValidated] bounce filtered")
	}
}

// WaitForPress blocks until a validated press and returns its instant.
//
// The instant is the first high-to-low transition, not the moment of
// validation: the call returns one debounce window later, once the input
// reads low again, and bounces inside that window are ignored. Reaction
// times therefore carry no debounce latency.
func (b *Button) WaitForPress(ctx context.Context) (time.Time, error) {
	at, err := b.waitForValidated(ctx, hal.Low)
	if err == nil {
		logger.Debug().Str("role", b.role.String()).Time("at", at).Msg("[Button.WaitForPress] press validated")
	}
	return at, err
}

// WaitForRelease blocks until a validated release and returns its instant.
func (b *Button) WaitForRelease(ctx context.Context) (time.Time, error) {
	at, err := b.waitForValidated(ctx, hal.High)
	if err == nil {
		logger.Debug().Str("role", b.role.String()).Time("at", at).Msg("[Button.WaitForRelease] release validated")
	}
	return at, err
}

// --------------- reaction timer -----------------

// WaitForFullPress returns right after a validated press. Used for start gestures.
func (b *Button) WaitForFullPress(ctx context.Context) (time.Time, error) {
	return b.WaitForPress(ctx)
}

// MeasureFullPressRelease waits for a validated press then a validated
// release and returns the release instant.
func (b *Button) MeasureFullPressRelease(ctx context.Context) (time.Time, error) {
	if _, err := b.WaitForPress(ctx); err != nil {
		return time.Time{}, err
	}
	return b.WaitForRelease(ctx)
}

// MeasureSince is MeasureFullPressRelease for a round that went live at
// target: a press validated before target is a false start, so that
// press/release is discarded and the button re-arms.
func (b *Button) MeasureSince(ctx context.Context, target time.Time) (time.Time, error) {
	for {
		pressed, err := b.WaitForPress(ctx)
		if err != nil {
			return time.Time{}, err
		}
		released, err := b.WaitForRelease(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if pressed.Before(target) {
			logger.Warn().
				Str("role", b.role.String()).
				Dur("early_by", target.Sub(pressed)).
				Msg("[Button.MeasureSince] ⚠️ False start ignored, re-arming")
			continue
		}
		return released, nil
	}
}
