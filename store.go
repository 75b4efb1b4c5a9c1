package bundle

import "sync"

// Store is the persistent key-value store consumed by the cache layer.
// Values are opaque bytes; keys are opaque strings. The store may be shared
// across processes, so Fetch must guarantee that at most one stored value
// wins under concurrent writers for the same key, and a read never observes
// an interleaving of two writers' payloads.
type Store interface {
	// Get returns the value for key, reporting whether it was present.
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any existing value.
	Set(key string, value []byte) error

	// Fetch returns the value for key, computing and storing it when
	// absent. Concurrent callers converge on a single stored value.
	Fetch(key string, compute func() ([]byte, error)) ([]byte, error)
}

// MemoryStore is an in-process Store, useful for embedding and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), value...)
	return nil
}

// Fetch implements Store. The compute function runs under the store lock,
// so exactly one caller computes and every concurrent caller sees the same
// stored value.
func (s *MemoryStore) Fetch(key string, compute func() ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.entries[key]; ok {
		return append([]byte(nil), v...), nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	s.entries[key] = append([]byte(nil), v...)
	return append([]byte(nil), v...), nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
