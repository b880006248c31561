// file: hal/sim_test.go
//go:build unit
// +build unit

package hal

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test: a pull-up pin idles high and WaitForLevel returns the instant it changed
func TestSimPin_WaitForLevelReportsChangeInstant(t *testing.T) {
	clock := clockwork.NewFakeClock()
	pin := NewSimPin("p1", clock)
	assert.Equal(t, High, pin.Level())

	done := make(chan time.Time, 1)
	go func() {
		at, err := pin.WaitForLevel(context.Background(), Low)
		if err == nil {
			done <- at
		}
	}()

	clock.Advance(40 * time.Millisecond)
	pressedAt := clock.Now()
	pin.Press()

	select {
	case at := <-done:
		assert.Equal(t, pressedAt, at)
	case <-time.After(time.Second):
		t.Fatal("WaitForLevel did not return after press")
	}

	// already low: returns immediately with the original instant
	clock.Advance(time.Second)
	at, err := pin.WaitForLevel(context.Background(), Low)
	require.NoError(t, err)
	assert.Equal(t, pressedAt, at)
}

// Test: WaitForLevel is cancellable
func TestSimPin_WaitForLevelCancelled(t *testing.T) {
	pin := NewSimPin("p2", clockwork.NewFakeClock())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := pin.WaitForLevel(ctx, Low)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Test: outputs count rises and wake waiters
func TestSimOutput_WaitFor(t *testing.T) {
	out := NewSimOutput("led")
	go func() {
		time.Sleep(5 * time.Millisecond)
		out.High()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, out.WaitFor(ctx, true))
	assert.True(t, out.IsHigh())

	out.High()
	out.Low()
	out.High()
	assert.Equal(t, 2, out.Rises())
}

// Test: the simulated watchdog resets once a full timeout passes without a feed
func TestSimWatchdog_StarvesWithoutFeed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	wd := NewSimWatchdog(clock)
	require.NoError(t, wd.Start(3*time.Second))
	assert.Error(t, wd.Start(3*time.Second), "second start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- wd.Run(ctx) }()

	// fed in time: keeps running
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)
	require.NoError(t, wd.Feed())
	clock.Advance(time.Second)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.False(t, wd.Expired())

	// starve it
	clock.Advance(3 * time.Second)
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrWatchdogReset)
	case <-ctx.Done():
		t.Fatal("watchdog never reset")
	}
	assert.True(t, wd.Expired())
	assert.ErrorIs(t, wd.Feed(), ErrWatchdogReset)
	assert.Equal(t, 1, wd.Feeds())
}

// Test: unknown backends are rejected
func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "vacuum-tubes"}, clockwork.NewFakeClock())
	assert.ErrorIs(t, err, ErrUnknownBackend)

	b, err := Open(Options{Backend: "sim"}, clockwork.NewFakeClock())
	require.NoError(t, err)
	assert.NotNil(t, b.Sim)
	assert.NoError(t, b.Close())
}

// Test: BlockUntilWaiting sees goroutines parked on the pin
func TestSimPin_BlockUntilWaiting(t *testing.T) {
	pin := NewSimPin("p1", clockwork.NewFakeClock())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := pin.WaitForLevel(ctx, Low)
		done <- err
	}()

	require.NoError(t, pin.BlockUntilWaiting(ctx, 1))
	pin.Press()
	require.NoError(t, <-done)
	require.NoError(t, pin.BlockUntilWaiting(ctx, 0))
}
