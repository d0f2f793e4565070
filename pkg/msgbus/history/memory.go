package history

import "sync"

// DefaultCapacity is the ring size used when NewMemoryStore gets capacity <= 0.
const DefaultCapacity = 1024

// MemoryStore keeps the most recent records in a fixed-size ring buffer shared
// by all buses. The oldest record is overwritten once the ring is full.
type MemoryStore struct {
	mu     sync.RWMutex
	ring   []Record
	next   int
	size   int
	closed bool
}

// NewMemoryStore creates a ring buffer holding up to capacity records.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		ring: make([]Record, capacity),
	}
}

// Append implements Store.
func (m *MemoryStore) Append(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.ring[m.next] = r
	m.next = (m.next + 1) % len(m.ring)
	if m.size < len(m.ring) {
		m.size++
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, ErrStoreClosed
	}

	for i := 0; i < m.size; i++ {
		if r := m.at(i); r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Recent implements Store.
func (m *MemoryStore) Recent(bus string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var out []Record
	for i := 0; i < m.size; i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		if r := m.at(i); r.Bus == bus {
			out = append(out, r)
		}
	}
	return out, nil
}

// Clear implements Store. Records of other buses keep their order.
func (m *MemoryStore) Clear(bus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	kept := make([]Record, 0, m.size)
	for i := m.size - 1; i >= 0; i-- {
		if r := m.at(i); r.Bus != bus {
			kept = append(kept, r)
		}
	}
	clear(m.ring)
	copy(m.ring, kept)
	m.size = len(kept)
	m.next = len(kept) % len(m.ring)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.ring = nil
	m.size = 0
	return nil
}

// Len returns the number of records held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Cap returns the ring capacity.
func (m *MemoryStore) Cap() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ring)
}

// at returns the i-th newest record. Caller holds the lock.
func (m *MemoryStore) at(i int) Record {
	n := len(m.ring)
	return m.ring[((m.next-1-i)%n+n)%n]
}
