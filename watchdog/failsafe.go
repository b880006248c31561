// Package watchdog keeps the hardware watchdog fed and owns the fail-safe
// that deliberately lets it starve.
// file: watchdog/failsafe.go
package watchdog

import (
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
	"go-button-wars/telemetry"
)

// FailSafe is a one-way switch. Once armed the feeder stops feeding and the
// watchdog resets the device after its timeout.
type FailSafe struct {
	armed  atomic.Bool
	reason atomic.Pointer[string]
	clock  clockwork.Clock
	sink   telemetry.Sink
}

// NewFailSafe returns a disarmed fail-safe.
func NewFailSafe(clock clockwork.Clock, sink telemetry.Sink) *FailSafe {
	return &FailSafe{clock: clock, sink: telemetry.OrNop(sink)}
}

// Arm trips the fail-safe. Only the first call has an effect.
func (f *FailSafe) Arm(reason string) {
	if !f.armed.CompareAndSwap(false, true) {
		return
	}
	f.reason.Store(&reason)
	logger.Error().Str("reason", reason).Msg("[FailSafe.Arm] ❌ Fail-safe armed, watchdog will starve")
	f.sink.Publish(telemetry.Event{
		Type: telemetry.EventFailSafe,
		Time: f.clock.Now(),
		Data: map[string]interface{}{"reason": reason},
	})
}

// Armed reports whether Arm has been called.
func (f *FailSafe) Armed() bool { return f.armed.Load() }

// Reason is the reason given to the first Arm call, or "".
func (f *FailSafe) Reason() string {
	if r := f.reason.Load(); r != nil {
		return *r
	}
	return ""
}
