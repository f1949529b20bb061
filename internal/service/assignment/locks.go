package assignment_service

import "sync"

// Locks is a keyed mutex shared by the coordinator and the expiry sweeper.
// Lock order is always bus before rider.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

func BusKey(busID string) string     { return "bus:" + busID }
func RiderKey(riderID string) string { return "rider:" + riderID }

// Lock blocks until key is free and returns the matching unlock func.
func (l *Locks) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
