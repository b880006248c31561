// file: hal/sim.go
package hal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
)

// ---------------- simulated input ----------------

// SimPin is a pull-up input driven by tests, bots or HTTP handlers.
type SimPin struct {
	name    string
	clock   clockwork.Clock
	mu      sync.Mutex
	level   Level
	changed time.Time
	notify  chan struct{}

	// goroutines parked in WaitForLevel
	waiters     int
	waitersSeen chan struct{}
}

// NewSimPin returns an idle (High) pin.
func NewSimPin(name string, clock clockwork.Clock) *SimPin {
	return &SimPin{
		name:    name,
		clock:   clock,
		level:   High,
		changed:     clock.Now(),
		notify:      make(chan struct{}),
		waitersSeen: make(chan struct{}),
	}
}

// Level implements Input.
func (p *SimPin) Level() Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Set drives the pin. Setting the current level is a no-op.
func (p *SimPin) Set(l Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.level == l {
		return
	}
	p.level = l
	p.changed = p.clock.Now()
	close(p.notify)
	p.notify = make(chan struct{})
	logger.Trace().Str("pin", p.name).Stringer("level", l).Msg("[SimPin.Set]")
}

// Press pulls the pin low.
func (p *SimPin) Press() { p.Set(Low) }

// Release lets the pull-up bring the pin high.
func (p *SimPin) Release() { p.Set(High) }

// WaitForLevel implements Input.
func (p *SimPin) WaitForLevel(ctx context.Context, want Level) (time.Time, error) {
	for {
		p.mu.Lock()
		if p.level == want {
			at := p.changed
			p.mu.Unlock()
			return at, nil
		}
		ch := p.notify
		p.parked(1)
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			p.mu.Lock()
			p.parked(-1)
			p.mu.Unlock()
			return time.Time{}, ctx.Err()
		}
		p.mu.Lock()
		p.parked(-1)
		p.mu.Unlock()
	}
}

// parked adjusts the waiter count. Callers hold p.mu.
func (p *SimPin) parked(delta int) {
	p.waiters += delta
	close(p.waitersSeen)
	p.waitersSeen = make(chan struct{})
}

// BlockUntilWaiting returns once exactly n goroutines are parked in
// WaitForLevel. Tests use it to step a sequence without sleeping.
func (p *SimPin) BlockUntilWaiting(ctx context.Context, n int) error {
	for {
		p.mu.Lock()
		if p.waiters == n {
			p.mu.Unlock()
			return nil
		}
		ch := p.waitersSeen
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ---------------- simulated output ----------------

// SimOutput records an LED level and lets observers wait for changes.
type SimOutput struct {
	name   string
	mu     sync.Mutex
	high   bool
	rises  int
	notify chan struct{}
}

// NewSimOutput returns an output that starts low.
func NewSimOutput(name string) *SimOutput {
	return &SimOutput{name: name, notify: make(chan struct{})}
}

func (o *SimOutput) set(high bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.high == high {
		return
	}
	o.high = high
	if high {
		o.rises++
	}
	close(o.notify)
	o.notify = make(chan struct{})
}

func (o *SimOutput) High() { o.set(true) }
func (o *SimOutput) Low()  { o.set(false) }

func (o *SimOutput) IsHigh() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.high
}

// Rises counts low-to-high transitions, i.e. how many times the LED lit.
func (o *SimOutput) Rises() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rises
}

// WaitFor blocks until the output is at the wanted state.
func (o *SimOutput) WaitFor(ctx context.Context, high bool) error {
	for {
		o.mu.Lock()
		if o.high == high {
			o.mu.Unlock()
			return nil
		}
		ch := o.notify
		o.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ---------------- simulated watchdog ----------------

// ErrWatchdogReset is returned by SimWatchdog.Run when the countdown starves.
var ErrWatchdogReset = errors.New("watchdog starved: device reset")

// SimWatchdog is a clock-driven countdown.
type SimWatchdog struct {
	clock    clockwork.Clock
	mu       sync.Mutex
	timeout  time.Duration
	lastFeed time.Time
	started  chan struct{}
	feeds    int
	expired  bool
}

// NewSimWatchdog returns a stopped watchdog.
func NewSimWatchdog(clock clockwork.Clock) *SimWatchdog {
	return &SimWatchdog{clock: clock, started: make(chan struct{})}
}

// Start arms the countdown. A second Start is an error, as on hardware.
func (w *SimWatchdog) Start(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout != 0 {
		return errors.New("watchdog already started")
	}
	if timeout <= 0 {
		return errors.New("watchdog timeout must be positive")
	}
	w.timeout = timeout
	w.lastFeed = w.clock.Now()
	close(w.started)
	return nil
}

// Feed restarts the countdown.
func (w *SimWatchdog) Feed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expired {
		return ErrWatchdogReset
	}
	w.lastFeed = w.clock.Now()
	w.feeds++
	return nil
}

// Feeds counts successful feeds.
func (w *SimWatchdog) Feeds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeds
}

// Expired reports whether the countdown has starved.
func (w *SimWatchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// remaining returns how long until starvation; <= 0 means starved now.
func (w *SimWatchdog) remaining() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout - w.clock.Since(w.lastFeed)
}

// Run plays the role of the hardware countdown: it returns ErrWatchdogReset
// once the watchdog goes a full timeout without a feed.
func (w *SimWatchdog) Run(ctx context.Context) error {
	select {
	case <-w.started:
	case <-ctx.Done():
		return ctx.Err()
	}
	for {
		d := w.remaining()
		if d <= 0 {
			w.mu.Lock()
			w.expired = true
			w.mu.Unlock()
			logger.Error().Msg("[SimWatchdog.Run] ❌ Watchdog starved, resetting device")
			return ErrWatchdogReset
		}
		select {
		case <-w.clock.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ---------------- simulated board ----------------

// SimBoard exposes the concrete simulated peripherals.
type SimBoard struct {
	ButtonP1   *SimPin
	ButtonP2   *SimPin
	LedOnboard *SimOutput
	LedP1      *SimOutput
	LedP2      *SimOutput
	Watchdog   *SimWatchdog
}

// NewSimBoard wires a full simulated device on clock.
func NewSimBoard(clock clockwork.Clock) *SimBoard {
	return &SimBoard{
		ButtonP1:   NewSimPin("button-p1", clock),
		ButtonP2:   NewSimPin("button-p2", clock),
		LedOnboard: NewSimOutput("led-onboard"),
		LedP1:      NewSimOutput("led-p1"),
		LedP2:      NewSimOutput("led-p2"),
		Watchdog:   NewSimWatchdog(clock),
	}
}

// Board returns the interface view of the simulated device.
func (s *SimBoard) Board() *Board {
	return &Board{
		ButtonP1:   s.ButtonP1,
		ButtonP2:   s.ButtonP2,
		LedOnboard: s.LedOnboard,
		LedP1:      s.LedP1,
		LedP2:      s.LedP2,
		Watchdog:   s.Watchdog,
		Sim:        s,
	}
}
