package store

import "sync"

// Identity names one version of a resource's data. Two equal identities
// always denote the same data.
type Identity struct {
	ID      string
	Key     string
	Version uint64
}

type memoSlot[K comparable, V any] struct {
	key   K
	value V
}

// MemoStats counts cache behaviour.
type MemoStats struct {
	Hits   int
	Misses int
}

// Memo caches derived values. Each named slot remembers the last input
// key and its value and recomputes only when the key changes, so callers
// get the same value back for unchanged input.
type Memo[K comparable, V any] struct {
	mu    sync.Mutex
	slots map[string]memoSlot[K, V]
	stats MemoStats
}

// NewMemo creates an empty memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{slots: make(map[string]memoSlot[K, V])}
}

// Get returns the cached value for slot when its key equals key,
// otherwise computes, stores and returns a new one.
func (m *Memo[K, V]) Get(slot string, key K, compute func() V) V {
	m.mu.Lock()
	if s, ok := m.slots[slot]; ok && s.key == key {
		m.stats.Hits++
		m.mu.Unlock()
		return s.value
	}
	m.mu.Unlock()

	value := compute()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Misses++
	m.slots[slot] = memoSlot[K, V]{key: key, value: value}
	return value
}

// Invalidate drops a slot.
func (m *Memo[K, V]) Invalidate(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slot)
}

// Stats returns hit and miss counts.
func (m *Memo[K, V]) Stats() MemoStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
