// file: watchdog/monitor.go
package watchdog

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/models"
	"go-button-wars/shared"
	"go-button-wars/telemetry"
)

// Sampler is a button the monitor can poll without waiting on it for long.
type Sampler interface {
	Role() models.ButtonRole
	TrySample(budget time.Duration) (hal.Level, error)
}

// MonitorConfig holds the long-press timings.
type MonitorConfig struct {
	Tick       time.Duration
	LockBudget time.Duration
	WarnAfter  time.Duration
	ResetAfter time.Duration
}

type pressTrack struct {
	pressed bool
	since   time.Time
}

// LongPressMonitor arms the fail-safe when both buttons are held together
// for ResetAfter. A sample that cannot get the button lock within
// LockBudget keeps the last known state.
type LongPressMonitor struct {
	buttons  [2]Sampler
	failSafe *FailSafe
	cfg      MonitorConfig
	clock    clockwork.Clock
	sink     telemetry.Sink

	track  [2]pressTrack
	warned bool
}

// NewLongPressMonitor watches p1 and p2.
func NewLongPressMonitor(p1, p2 Sampler, failSafe *FailSafe, cfg MonitorConfig, clock clockwork.Clock, sink telemetry.Sink) *LongPressMonitor {
	return &LongPressMonitor{
		buttons:  [2]Sampler{p1, p2},
		failSafe: failSafe,
		cfg:      cfg,
		clock:    clock,
		sink:     telemetry.OrNop(sink),
	}
}

// Pressed is the last known press state of button i (0 or 1).
func (m *LongPressMonitor) Pressed(i int) bool { return m.track[i].pressed }

// Run ticks until ctx ends.
func (m *LongPressMonitor) Run(ctx context.Context) error {
	logger.Info().Dur("tick", m.cfg.Tick).Msg("[LongPressMonitor.Run] Long-press monitor started")
	ticker := m.clock.NewTicker(m.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			m.Tick(m.clock.Now())
		}
	}
}

// Tick samples both buttons once at now and applies the thresholds.
func (m *LongPressMonitor) Tick(now time.Time) {
	for i, b := range m.buttons {
		lvl, err := b.TrySample(m.cfg.LockBudget)
		if err != nil {
			if errors.Is(err, shared.ErrLockTimeout) {
				logger.Trace().Stringer("role", b.Role()).Msg("[LongPressMonitor.Tick] button busy, keeping last state")
			}
			continue
		}
		pressed := lvl == hal.Low
		switch {
		case pressed && !m.track[i].pressed:
			m.track[i] = pressTrack{pressed: true, since: now}
		case !pressed && m.track[i].pressed:
			m.track[i] = pressTrack{}
		}
	}

	if !m.track[0].pressed || !m.track[1].pressed {
		m.warned = false
		return
	}

	held := now.Sub(m.track[0].since)
	if h := now.Sub(m.track[1].since); h < held {
		held = h
	}

	switch {
	case held >= m.cfg.ResetAfter:
		if !m.failSafe.Armed() {
			logger.Warn().Dur("held", held).Msg("[LongPressMonitor.Tick] Both buttons held, resetting")
		}
		m.failSafe.Arm("both buttons held")
	case held >= m.cfg.WarnAfter && !m.warned:
		m.warned = true
		logger.Warn().
			Dur("held", held).
			Dur("reset_in", m.cfg.ResetAfter-held).
			Msg("[LongPressMonitor.Tick] ⚠️ Both buttons held, reset armed")
		m.sink.Publish(telemetry.Event{
			Type: telemetry.EventLongPress,
			Time: now,
			Data: map[string]interface{}{"heldMs": held.Milliseconds()},
		})
	}
}
