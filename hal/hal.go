// Package hal is the peripheral boundary: two pull-up buttons, three LEDs and a
// hardware watchdog. Core code only sees the interfaces below; backends provide
// a simulated board for hosts and a GPIO board for a Raspberry Pi.
// file: hal/hal.go
package hal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
)

// Level is the electrical level of a digital pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "High"
	}
	return "Low"
}

// Input is a raw digital input. Buttons are pull-up, so Low means pressed.
type Input interface {
	// Level samples the current level.
	Level() Level
	// WaitForLevel blocks until the pin is at want and returns the instant it
	// entered that level. Returns immediately when the pin is already there.
	WaitForLevel(ctx context.Context, want Level) (time.Time, error)
}

// Output is a digital output driving an LED.
type Output interface {
	High()
	Low()
	IsHigh() bool
}

// Watchdog is a hardware countdown that resets the device unless fed.
type Watchdog interface {
	Start(timeout time.Duration) error
	Feed() error
}

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown hal backend")

// Pins are BCM GPIO numbers used by the rpio backend.
type Pins struct {
	ButtonP1   int
	ButtonP2   int
	LedOnboard int
	LedP1      int
	LedP2      int
}

// Options selects and configures a backend.
type Options struct {
	Backend        string // "sim" or "rpio"
	Pins           Pins
	WatchdogDevice string
	PollInterval   time.Duration
}

// Board bundles the peripherals of one device.
type Board struct {
	ButtonP1   Input
	ButtonP2   Input
	LedOnboard Output
	LedP1      Output
	LedP2      Output
	Watchdog   Watchdog

	// Sim is set for the simulated backend so tests, bots and the HTTP
	// surface can drive the buttons.
	Sim *SimBoard

	closeFn func() error
}

// Close releases backend resources.
func (b *Board) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open builds the board for opts.Backend.
func Open(opts Options, clock clockwork.Clock) (*Board, error) {
	logger.Info().Str("backend", opts.Backend).Msg("[hal.Open] Initializing peripherals")
	switch opts.Backend {
	case "", "sim":
		sb := NewSimBoard(clock)
		return sb.Board(), nil
	case "rpio":
		return openRpio(opts, clock)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
