//go:build linux

// file: hal/rpio_linux.go
package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stianeikeland/go-rpio/v4"
	"go-button-wars/logger"
)

const defaultPollInterval = 50 * time.Microsecond

// RpioInput is a pull-up GPIO button read through /dev/gpiomem.
type RpioInput struct {
	pin   rpio.Pin
	clock clockwork.Clock
	poll  time.Duration

	mu      sync.Mutex
	last    Level
	changed time.Time
}

func newRpioInput(n int, clock clockwork.Clock, poll time.Duration) *RpioInput {
	pin := rpio.Pin(n)
	pin.Input()
	pin.PullUp()
	in := &RpioInput{pin: pin, clock: clock, poll: poll}
	in.last = in.read()
	in.changed = clock.Now()
	return in
}

func (in *RpioInput) read() Level {
	if in.pin.Read() == rpio.Low {
		return Low
	}
	return High
}

// Level implements Input and remembers when the level last changed.
func (in *RpioInput) Level() Level {
	l := in.read()
	in.mu.Lock()
	defer in.mu.Unlock()
	if l != in.last {
		in.last = l
		in.changed = in.clock.Now()
	}
	return l
}

// WaitForLevel implements Input by polling.
func (in *RpioInput) WaitForLevel(ctx context.Context, want Level) (time.Time, error) {
	ticker := in.clock.NewTicker(in.poll)
	defer ticker.Stop()
	for {
		if in.Level() == want {
			in.mu.Lock()
			at := in.changed
			in.mu.Unlock()
			return at, nil
		}
		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}
}

// RpioOutput drives an LED pin.
type RpioOutput struct {
	pin rpio.Pin
}

func newRpioOutput(n int) *RpioOutput {
	pin := rpio.Pin(n)
	pin.Output()
	pin.Low()
	return &RpioOutput{pin: pin}
}

func (o *RpioOutput) High()        { o.pin.High() }
func (o *RpioOutput) Low()         { o.pin.Low() }
func (o *RpioOutput) IsHigh() bool { return o.pin.Read() == rpio.High }

func openRpio(opts Options, clock clockwork.Clock) (*Board, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	wd := NewDeviceWatchdog(opts.WatchdogDevice)
	b := &Board{
		ButtonP1:   newRpioInput(opts.Pins.ButtonP1, clock, poll),
		ButtonP2:   newRpioInput(opts.Pins.ButtonP2, clock, poll),
		LedOnboard: newRpioOutput(opts.Pins.LedOnboard),
		LedP1:      newRpioOutput(opts.Pins.LedP1),
		LedP2:      newRpioOutput(opts.Pins.LedP2),
		Watchdog:   wd,
		closeFn: func() error {
			if err := wd.Close(); err != nil {
				logger.Warn().Err(err).Msg("[hal.Close] watchdog close failed")
			}
			return rpio.Close()
		},
	}
	logger.Info().
		Int("button_p1", opts.Pins.ButtonP1).
		Int("button_p2", opts.Pins.ButtonP2).
		Str("watchdog", opts.WatchdogDevice).
		Msg("[hal.openRpio] GPIO board ready")
	return b, nil
}
