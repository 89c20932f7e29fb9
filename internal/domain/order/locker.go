package order

import (
	"sync"

	"github.com/google/uuid"
)

// Locker serializes lifecycle and line-item mutations per order. The stock
// counter itself is additionally guarded by atomic conditional updates in the
// inventory accessor; the per-order lock prevents interleaved read-mutate-save
// cycles on the same aggregate.
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*orderLock)}
}

// Lock acquires the lock for the given order id and returns the matching
// unlock function. Lock entries are reference counted and removed when the
// last holder releases, so the map does not grow with order history.
func (l *Locker) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &orderLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
