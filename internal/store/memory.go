package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/shiki-proxy/internal/catalog"
)

// InMemoryStore backs tests and local runs without Postgres.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[int]catalog.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[int]catalog.Entry)}
}

func (s *InMemoryStore) UpsertEntries(_ context.Context, entries []catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.rows[e.ID] = e
	}
	return nil
}

func (s *InMemoryStore) UpdateScore(_ context.Context, id int, mean *float64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil
	}
	e.Mean = mean
	e.Status = status
	s.rows[id] = e
	return nil
}

func (s *InMemoryStore) UpdatePopularity(_ context.Context, id, popularity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil
	}
	e.Popularity = &popularity
	s.rows[id] = e
	return nil
}

func (s *InMemoryStore) AiringIDs(_ context.Context, limit int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int
	for id, e := range s.rows {
		if e.Status == "currently_airing" {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *InMemoryStore) MissingPopularityIDs(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int
	for id, e := range s.rows {
		if e.Popularity == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *InMemoryStore) KeepAlive(context.Context) error { return nil }

// Len reports the number of distinct rows.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Get returns a stored row, for assertions.
func (s *InMemoryStore) Get(id int) (catalog.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[id]
	return e, ok
}
