// Package shared holds the locking discipline used by every task that touches
// a shared peripheral or the game singleton.
// file: shared/lock.go
package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go-button-wars/logger"
	"golang.org/x/sync/semaphore"
)

// ErrLockTimeout is returned when a bounded acquire runs out of budget.
var ErrLockTimeout = errors.New("lock acquire timed out")

// Lock is a mutual-exclusion lock whose acquisition can be cancelled or bounded in time.
type Lock struct {
	name  string
	sem   *semaphore.Weighted
	clock clockwork.Clock
}

// NewLock returns an unlocked Lock. name only shows up in logs; clock bounds
// TryLockFor and defaults to the real clock.
func NewLock(name string, clock clockwork.Clock) *Lock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Lock{name: name, sem: semaphore.NewWeighted(1), clock: clock}
}

// Name of the protected resource.
func (l *Lock) Name() string { return l.name }

// Lock blocks until the lock is held or ctx ends.
func (l *Lock) Lock(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// TryLockFor waits at most d for the lock. It returns ErrLockTimeout when the
// budget runs out so callers can fall back to their last known state.
func (l *Lock) TryLockFor(d time.Duration) error {
	if l.sem.TryAcquire(1) {
		return nil
	}
	ctx, cancel := clockwork.WithTimeout(context.Background(), l.clock, d)
	defer cancel()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		logger.Trace().Str("lock", l.name).Dur("budget", d).Msg("[Lock.TryLockFor] budget exhausted")
		return ErrLockTimeout
	}
	return nil
}

// Unlock releases the lock. Unlocking an unlocked Lock panics.
func (l *Lock) Unlock() {
	l.sem.Release(1)
}

// --------------- Cell -----------------

// Cell is a single value behind a Lock. Every read or write of the value goes
// through Do / TryDo so the critical section stays inside the callback.
type Cell[T any] struct {
	lock  *Lock
	value T
}

// NewCell wraps v.
func NewCell[T any](name string, v T, clock clockwork.Clock) *Cell[T] {
	return &Cell[T]{lock: NewLock(name, clock), value: v}
}

// Lock exposes the underlying lock, e.g. to hold it across an exclusive operation.
func (c *Cell[T]) Lock() *Lock { return c.lock }

// Do runs fn with the lock held.
func (c *Cell[T]) Do(ctx context.Context, fn func(v *T) error) error {
	if err := c.lock.Lock(ctx); err != nil {
		return err
	}
	defer c.lock.Unlock()
	return fn(&c.value)
}

// TryDo runs fn if the lock can be taken within d, otherwise returns ErrLockTimeout.
func (c *Cell[T]) TryDo(d time.Duration, fn func(v *T) error) error {
	if err := c.lock.TryLockFor(d); err != nil {
		return err
	}
	defer c.lock.Unlock()
	return fn(&c.value)
}

// Load returns a copy of the value.
func (c *Cell[T]) Load(ctx context.Context) (T, error) {
	var out T
	err := c.Do(ctx, func(v *T) error {
		out = *v
		return nil
	})
	return out, err
}

// Store replaces the value.
func (c *Cell[T]) Store(ctx context.Context, v T) error {
	return c.Do(ctx, func(cur *T) error {
		*cur = v
		return nil
	})
}
