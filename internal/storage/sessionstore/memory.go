package sessionstore

import "sync"

// MemoryStore holds deadlines in process memory. It backs tests and the
// degraded mode used when the file store is unavailable.
type MemoryStore struct {
	mu        sync.RWMutex
	deadlines map[string]Deadline
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deadlines: make(map[string]Deadline)}
}

func (s *MemoryStore) Get(purpose string) (Deadline, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deadlines[purpose]
	return d, ok, nil
}

func (s *MemoryStore) Put(d Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[d.Purpose] = d
	return nil
}

func (s *MemoryStore) Delete(purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadlines, purpose)
	return nil
}
