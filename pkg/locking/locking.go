// Package locking serializes resolution work per normalized key.
package locking

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired within
	// the wait budget. The pipeline treats this as advisory and proceeds.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when releasing a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

// Lock is a held lock. Release it exactly once.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out per-key locks so concurrent resolutions of the same
// normalized name do not race each other into duplicate entities.
type Locker interface {
	// TryAcquire attempts to take the key's lock, retrying with backoff
	// until the wait budget runs out. Returns ErrLockNotAcquired when the
	// budget expires while the key stays contended.
	TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error)
}

// Noop hands out locks that guard nothing. The default for hosts that run a
// single process and accept duplicate-entity races under concurrency.
type Noop struct{}

// NewNoop creates a locker whose locks guard nothing
func NewNoop() *Noop {
	return &Noop{}
}

func (*Noop) TryAcquire(context.Context, string, time.Duration, time.Duration) (Lock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release(context.Context) error {
	return nil
}
