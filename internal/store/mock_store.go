// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	events   []*AllocationEvent
	presence map[string]*Presence // keyed by agent address

	// Err, when set, is returned by every write.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		presence: make(map[string]*Presence),
	}
}

// SaveAllocationEvent appends a copy of the event.
func (m *MockStore) SaveAllocationEvent(ctx context.Context, e *AllocationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = newEventID(e.Timestamp)
	}

	// Make a copy to avoid external modification
	c := *e
	c.Skills = append([]string(nil), e.Skills...)
	m.events = append(m.events, &c)
	return nil
}

// ListAllocationEvents returns matching events, newest first.
func (m *MockStore) ListAllocationEvents(ctx context.Context, f AllocationFilter) ([]*AllocationEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeLimit(f.Limit)
	var out []*AllocationEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.events[i]
		if f.AgentAddress != "" && e.AgentAddress != f.AgentAddress {
			continue
		}
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// PruneAllocationEvents drops events older than before.
func (m *MockStore) PruneAllocationEvents(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}
	kept := m.events[:0]
	var removed int64
	for _, e := range m.events {
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

// SetPresence stores a copy of p unless the stored row is newer.
func (m *MockStore) SetPresence(ctx context.Context, p *Presence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if cur, ok := m.presence[p.AgentAddress]; ok && p.UpdatedAt.Before(cur.UpdatedAt) {
		return nil
	}
	c := *p
	m.presence[p.AgentAddress] = &c
	return nil
}

// GetPresence returns the stored presence or ErrNotFound.
func (m *MockStore) GetPresence(ctx context.Context, agentAddress string) (*Presence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.presence[agentAddress]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

// ListPresence returns all presence rows ordered by address.
func (m *MockStore) ListPresence(ctx context.Context) ([]*Presence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Presence, 0, len(m.presence))
	for _, p := range m.presence {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentAddress < out[j].AgentAddress })
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Verify interface compliance
var (
	_ Store = (*MockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*BreakerStore)(nil)
)
