package locking

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process locker. Each key maps to a one-slot channel that
// acts as its mutex. Key channels are never removed; the table grows with
// the number of distinct keys seen, which is acceptable for the in-process
// default where keys are normalized names.
type Memory struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewMemory creates a new in-process locker
func NewMemory() *Memory {
	return &Memory{
		locks: make(map[string]chan struct{}),
	}
}

// TryAcquire takes the key's slot or gives up after the wait budget. The TTL
// is ignored: in-process locks die with the process, so an abandoned lock
// cannot outlive a crash the way a distributed one can.
func (m *Memory) TryAcquire(ctx context.Context, key string, _, wait time.Duration) (Lock, error) {
	m.mu.Lock()
	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	m.mu.Unlock()

	if wait <= 0 {
		select {
		case ch <- struct{}{}:
			return &memoryLock{ch: ch}, nil
		default:
			return nil, ErrLockNotAcquired
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return &memoryLock{ch: ch}, nil
	case <-timer.C:
		return nil, ErrLockNotAcquired
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type memoryLock struct {
	ch       chan struct{}
	released sync.Once
}

func (l *memoryLock) Release(context.Context) error {
	err := ErrLockNotHeld
	l.released.Do(func() {
		<-l.ch
		err = nil
	})
	return err
}
