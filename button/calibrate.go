// file: button/calibrate.go
package button

import (
	"context"
	"errors"
	"time"

	"go-button-wars/hal"
	"go-button-wars/logger"
)

const (
	calibrationPoll = 50 * time.Microsecond
	calibrationRest = 500 * time.Millisecond

	// MinDebounce is the floor of any calibrated debounce window.
	MinDebounce = 150 * time.Millisecond
	// safetyMarginPct is added on top of the longest bounce observed.
	safetyMarginPct = 10
)

// bounceTracker follows one measurement window. It starts at the level that
// triggered the measurement and records the longest gap between two
// consecutive transitions.
type bounceTracker struct {
	last        hal.Level
	lastAt      time.Time
	transitions int
	longest     time.Duration
}

func newBounceTracker(start hal.Level, at time.Time) *bounceTracker {
	return &bounceTracker{last: start, lastAt: at}
}

func (t *bounceTracker) observe(level hal.Level, at time.Time) {
	if level == t.last {
		return
	}
	t.transitions++
	if t.transitions > 1 {
		if gap := at.Sub(t.lastAt); gap > t.longest {
			t.longest = gap
		}
	}
	t.last = level
	t.lastAt = at
}

// DebounceFromBounce adds the safety margin to the longest bounce and applies the floor.
func DebounceFromBounce(longest time.Duration) time.Duration {
	d := longest + longest*safetyMarginPct/100
	if d < MinDebounce {
		return MinDebounce
	}
	return d
}

// MeasureMinimalDebounce asks the operator to press the button iterations
// times. Each press opens a window during which the raw level is polled and
// every transition counted. The result is the longest bounce seen across all
// windows plus the safety margin, never less than MinDebounce.
func (b *Button) MeasureMinimalDebounce(ctx context.Context, window time.Duration, iterations int) (time.Duration, error) {
	if window <= 0 {
		return 0, errors.New("calibration window must be positive")
	}
	if iterations < 1 {
		return 0, errors.New("calibration needs at least one iteration")
	}
	logger.Info().
		Str("role", b.role.String()).
		Dur("window", window).
		Int("iterations", iterations).
		Msg("[Button.MeasureMinimalDebounce] Measuring debounce, press the button")

	var maxBounce time.Duration
	totalTransitions := 0
	for i := 0; i < iterations; i++ {
		if _, err := b.input.WaitForLevel(ctx, hal.Low); err != nil {
			return 0, err
		}
		tr, err := b.pollWindow(ctx, window)
		if err != nil {
			return 0, err
		}
		totalTransitions += tr.transitions
		if tr.longest > maxBounce {
			maxBounce = tr.longest
		}
		logger.Info().
			Str("role", b.role.String()).
			Int("iteration", i+1).
			Int("transitions", tr.transitions).
			Dur("longest_bounce", tr.longest).
			Msg("[Button.MeasureMinimalDebounce] Iteration done")

		if i < iterations-1 {
			if _, err := b.input.WaitForLevel(ctx, hal.High); err != nil {
				return 0, err
			}
			if err := b.sleep(ctx, calibrationRest); err != nil {
				return 0, err
			}
		}
	}

	result := DebounceFromBounce(maxBounce)
	logger.Info().
		Str("role", b.role.String()).
		Int("avg_transitions", totalTransitions/iterations).
		Dur("max_bounce", maxBounce).
		Dur("debounce", result).
		Msg("[Button.MeasureMinimalDebounce] ✅ Calibration summary")
	return result, nil
}

// pollWindow samples the raw level for window while holding the sensor lock.
func (b *Button) pollWindow(ctx context.Context, window time.Duration) (*bounceTracker, error) {
	if err := b.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer b.lock.Unlock()

	start := b.clock.Now()
	end := start.Add(window)
	tr := newBounceTracker(hal.Low, start)
	for b.clock.Now().Before(end) {
		tr.observe(b.input.Level(), b.clock.Now())
		if err := b.sleep(ctx, b.pollInterval); err != nil {
			return nil, err
		}
	}
	return tr, nil
}
