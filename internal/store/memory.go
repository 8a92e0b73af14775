// apps/go-server/internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Holds the live tables of every running game for the lifetime of the process.
//
// Characteristics:
//   - Stores *live.Table objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Delete and Sweep close tables so their feedback timers never outlive them.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/connections/apps/go-server/internal/live"
)

// ErrNotFound is returned for unknown game ids.
var ErrNotFound = errors.New("not found")

// Store defines the registry of running games.
type Store interface {
	// Save adds or replaces a table.
	Save(ctx context.Context, t *live.Table) error

	// Get retrieves a table by ID.
	// Returns ErrNotFound if the game is not found.
	Get(ctx context.Context, id string) (*live.Table, error)

	// Delete closes and removes a table. Returns ErrNotFound if missing.
	Delete(ctx context.Context, id string) error

	// Sweep closes and removes tables idle for longer than idle.
	// Returns the number removed.
	Sweep(ctx context.Context, idle time.Duration) int

	// Len reports how many games are held.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu     sync.RWMutex           // guards tables map
	tables map[string]*live.Table // keyed by Table.ID
	now    func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{tables: make(map[string]*live.Table), now: time.Now}
}

// Save adds or updates the table in the map. A replaced table is closed.
func (m *memory) Save(ctx context.Context, t *live.Table) error {
	m.mu.Lock()
	old := m.tables[t.ID]
	m.tables[t.ID] = t
	m.mu.Unlock()
	if old != nil && old != t {
		old.Close()
	}
	return nil
}

// Get looks up a table by ID.
func (m *memory) Get(ctx context.Context, id string) (*live.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[id]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

// Delete removes and closes a table.
func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	t, ok := m.tables[id]
	delete(m.tables, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.Close()
	return nil
}

// Sweep drops tables whose last activity is older than idle.
func (m *memory) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	var stale []*live.Table

	m.mu.Lock()
	for id, t := range m.tables {
		if t.LastActive().Before(cutoff) {
			stale = append(stale, t)
			delete(m.tables, id)
		}
	}
	m.mu.Unlock()

	for _, t := range stale {
		t.Close()
	}
	return len(stale)
}

// Len reports the number of stored tables.
func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}
