package profile

import "sync"

// Store exposes profile retrieval for the conversation service and handlers.
type Store interface {
	Add(p Profile)
	List() []Profile
	FindByID(id string) (Profile, bool)
}

// MemoryStore implements Store with an in-memory slice; nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items ...Profile) *MemoryStore {
	return &MemoryStore{items: append([]Profile(nil), items...)}
}

// Add appends a profile in creation order.
func (s *MemoryStore) Add(p Profile) {
	s.mu.Lock()
	s.items = append(s.items, p)
	s.mu.Unlock()
}

// List returns profiles in creation order.
func (s *MemoryStore) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Profile(nil), s.items...)
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Profile{}, false
}
