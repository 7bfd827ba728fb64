package store

import (
	"context"
	"sync"
)

// Monitor binds a game-server address to a chat channel and tracks the
// status message currently posted there. The operator chooses the id; the
// (ID, OwningGroupID) pair is the logical primary key.
type Monitor struct {
	ID               string `json:"id"`
	OwningGroupID    string `json:"owning_group_id"`
	ChannelID        string `json:"channel_id"`
	HostName         string `json:"host_name"`
	QueryPort        int    `json:"query_port"`
	CurrentMessageID string `json:"current_message_id,omitempty"`
}

// Store exposes the persistence operations the reconciliation loop and the
// configuration surfaces require. CurrentMessageID is written only by the
// loop; configuration callers pass through whatever is stored.
type Store interface {
	// Upsert inserts the monitor or replaces the record with the same
	// (id, owning group) key in place.
	Upsert(ctx context.Context, m Monitor) error
	// Remove deletes the matching record and reports whether one existed.
	Remove(ctx context.Context, id, owningGroupID string) (bool, error)
	// List returns all monitors, filtered to one owning group when
	// owningGroupID is non-empty. Order is unspecified.
	List(ctx context.Context, owningGroupID string) ([]Monitor, error)
	// Close releases the underlying storage handle.
	Close() error
}

type key struct {
	id    string
	group string
}

// NewMemoryStore returns an in-memory implementation useful for
// scaffolding/testing.
func NewMemoryStore() Store {
	return &memoryStore{monitors: map[key]Monitor{}}
}

type memoryStore struct {
	mu       sync.RWMutex
	monitors map[key]Monitor
}

func (m *memoryStore) Upsert(ctx context.Context, monitor Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitors[key{id: monitor.ID, group: monitor.OwningGroupID}] = monitor
	return nil
}

func (m *memoryStore) Remove(ctx context.Context, id, owningGroupID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{id: id, group: owningGroupID}
	if _, ok := m.monitors[k]; !ok {
		return false, nil
	}
	delete(m.monitors, k)
	return true, nil
}

func (m *memoryStore) List(ctx context.Context, owningGroupID string) ([]Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	monitors := make([]Monitor, 0, len(m.monitors))
	for _, monitor := range m.monitors {
		if owningGroupID != "" && monitor.OwningGroupID != owningGroupID {
			continue
		}
		monitors = append(monitors, monitor)
	}
	return monitors, nil
}

func (m *memoryStore) Close() error {
	return nil
}
