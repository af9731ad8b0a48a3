package services

import (
	"sync"
	"time"
)

// CooldownStore records the time of each requester's last successful
// submission.
type CooldownStore interface {
	Get(userID int64) (time.Time, bool)
	Set(userID int64, at time.Time)
}

// MemoryCooldowns is a process-local CooldownStore. Entries are lost on
// restart.
type MemoryCooldowns struct {
	mu   sync.Mutex
	last map[int64]time.Time
}

// NewMemoryCooldowns returns an empty store.
func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{last: make(map[int64]time.Time)}
}

func (m *MemoryCooldowns) Get(userID int64) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[userID]
	return t, ok
}

func (m *MemoryCooldowns) Set(userID int64, at time.Time) {
	m.mu.Lock()
	m.last[userID] = at
	m.mu.Unlock()
}

// Prune drops entries older than window and returns how many were removed.
func (m *MemoryCooldowns) Prune(now time.Time, window time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.last {
		if now.Sub(t) >= window {
			delete(m.last, id)
			n++
		}
	}
	return n
}
