package reconcile

import (
	"context"
	"sync"
)

// Locker serializes reconciliation passes for the same record.
type Locker interface {
	// Acquire blocks until the record is free or ctx is done.
	Acquire(ctx context.Context, recordID string) error
	Release(recordID string)
}

// KeyedLocker is an in-process Locker. Different records never contend.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*slot)}
}

// Acquire implements Locker.
func (l *KeyedLocker) Acquire(ctx context.Context, recordID string) error {
	l.mu.Lock()
	s, ok := l.slots[recordID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[recordID] = s
	}
	s.waiters++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(recordID, s)
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Release implements Locker. Releasing a record that is not held panics.
func (l *KeyedLocker) Release(recordID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[recordID]
	if !ok {
		panic("reconcile: release of unlocked record " + recordID)
	}
	<-s.ch
	l.drop(recordID, s)
}

// drop must be called with l.mu held.
func (l *KeyedLocker) drop(recordID string, s *slot) {
	s.waiters--
	if s.waiters == 0 {
		delete(l.slots, recordID)
	}
}

// held reports how many records currently have a slot; used by tests.
func (l *KeyedLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
