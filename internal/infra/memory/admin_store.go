package memory

import (
	"context"
	"sort"
	"sync"
)

// AdminStore is the in-memory admin roster.
type AdminStore struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewAdminStore() *AdminStore {
	return &AdminStore{ids: make(map[int64]struct{})}
}

func (s *AdminStore) AddAdmin(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[userID] = struct{}{}
	return nil
}

func (s *AdminStore) RemoveAdmin(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, userID)
	return nil
}

func (s *AdminStore) IsAdmin(_ context.Context, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[userID]
	return ok, nil
}

func (s *AdminStore) ListAdmins(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
