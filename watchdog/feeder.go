// file: watchdog/feeder.go
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/hal"
	"go-button-wars/logger"
	"go-button-wars/shared"
)

// Start arms the hardware countdown under the watchdog lock.
func Start(ctx context.Context, wd *shared.Cell[hal.Watchdog], timeout time.Duration) error {
	err := wd.Do(ctx, func(w *hal.Watchdog) error {
		return (*w).Start(timeout)
	})
	if err != nil {
		return fmt.Errorf("start watchdog: %w", err)
	}
	logger.Info().Dur("timeout", timeout).Msg("[watchdog.Start] ✅ Watchdog started")
	return nil
}

// Feeder feeds the watchdog on a fixed period until the fail-safe is armed.
type Feeder struct {
	wd       *shared.Cell[hal.Watchdog]
	failSafe *FailSafe
	interval time.Duration
	clock    clockwork.Clock
}

// NewFeeder returns a feeder for wd.
func NewFeeder(wd *shared.Cell[hal.Watchdog], failSafe *FailSafe, interval time.Duration, clock clockwork.Clock) *Feeder {
	return &Feeder{wd: wd, failSafe: failSafe, interval: interval, clock: clock}
}

// FeedOnce feeds the watchdog unless the fail-safe is armed. fed reports
// whether a feed happened.
func (f *Feeder) FeedOnce(ctx context.Context) (fed bool, err error) {
	if f.failSafe.Armed() {
		return false, nil
	}
	err = f.wd.Do(ctx, func(w *hal.Watchdog) error {
		return (*w).Feed()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Run feeds every interval. It returns when ctx ends or the watchdog
// reports a failure.
func (f *Feeder) Run(ctx context.Context) error {
	logger.Info().Dur("interval", f.interval).Msg("[Feeder.Run] Watchdog feeder started")
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	stopped := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
		fed, err := f.FeedOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error().Err(err).Msg("[Feeder.Run] ❌ Feed failed")
			return fmt.Errorf("feed watchdog: %w", err)
		}
		if !fed && !stopped {
			stopped = true
			logger.Warn().Str("reason", f.failSafe.Reason()).Msg("[Feeder.Run] ⚠️ Fail-safe armed, no longer feeding")
		}
	}
}
