// file: shared/lock_test.go
//go:build unit
// +build unit

package shared

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test: a bounded acquire on a held lock times out on the injected clock
func TestLock_TryLockForTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewLock("button-p1", clock)
	require.NoError(t, l.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.TryLockFor(10 * time.Millisecond) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	select {
	case err := <-done:
		t.Fatalf("TryLockFor returned before its budget elapsed: %v", err)
	default:
	}
	clock.Advance(10 * time.Millisecond)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLockTimeout)
	case <-ctx.Done():
		t.Fatal("TryLockFor did not time out after the fake clock advanced")
	}

	l.Unlock()
	require.NoError(t, l.TryLockFor(10*time.Millisecond))
	l.Unlock()
}

// Test: a nil clock falls back to real time
func TestLock_RealClockDefault(t *testing.T) {
	l := NewLock("watchdog", nil)
	require.NoError(t, l.Lock(context.Background()))
	defer l.Unlock()

	start := time.Now()
	assert.ErrorIs(t, l.TryLockFor(5*time.Millisecond), ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

// Test: a blocking acquire honours context cancellation
func TestLock_LockCancelled(t *testing.T) {
	l := NewLock("watchdog", nil)
	require.NoError(t, l.Lock(context.Background()))
	defer l.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Lock(ctx), context.Canceled)
}

// Test: Do serializes concurrent writers
func TestCell_DoSerializes(t *testing.T) {
	c := NewCell("counter", 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Do(context.Background(), func(v *int) error {
				*v++
				return nil
			})
		}()
	}
	wg.Wait()

	v, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, v)
}

// Test: TryDo skips the callback on timeout and propagates callback errors otherwise
func TestCell_TryDo(t *testing.T) {
	c := NewCell("value", "a", nil)
	require.NoError(t, c.Lock().Lock(context.Background()))

	called := false
	err := c.TryDo(5*time.Millisecond, func(v *string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)
	c.Lock().Unlock()

	boom := errors.New("boom")
	err = c.TryDo(5*time.Millisecond, func(v *string) error { return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, c.Store(context.Background(), "b"))
	v, _ := c.Load(context.Background())
	assert.Equal(t, "b", v)
}
