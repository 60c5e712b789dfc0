package orchestrator

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Registry stores live session records.
type Registry interface {
	// Put registers a new record. Ids must be unique.
	Put(rec *Record) error

	// Get returns the record for id or ErrSessionNotFound.
	Get(id string) (*Record, error)

	// List returns every record, oldest first.
	List() []*Record

	// Delete removes id and reports whether it was present.
	Delete(id string) bool

	// SweepExpired evicts terminal sessions started more than maxAge ago
	// and returns how many were removed.
	SweepExpired(maxAge time.Duration) int

	// Len returns the number of stored sessions.
	Len() int
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	now      func() time.Time
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*Record),
		now:      time.Now,
	}
}

func (m *MemoryRegistry) Put(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[rec.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, rec.ID())
	}
	m.sessions[rec.ID()] = rec
	return nil
}

func (m *MemoryRegistry) Get(id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return rec, nil
}

func (m *MemoryRegistry) List() []*Record {
	m.mu.RLock()
	out := make([]*Record, 0, len(m.sessions))
	for _, rec := range m.sessions {
		out = append(out, rec)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Record) int {
		if c := a.StartedAt().Compare(b.StartedAt()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

func (m *MemoryRegistry) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// SweepExpired never evicts a session that is still running, however old.
func (m *MemoryRegistry) SweepExpired(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.sessions {
		if rec.StartedAt().Before(cutoff) && rec.Status().Terminal() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
