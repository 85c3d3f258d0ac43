package store

import (
	"context"
	"sort"
	"sync"

	"serp-similarity/internal/models"
)

// MemoryStore provides thread-safe in-memory storage for runs. Runs are
// cloned on the way in and out so callers never share mutable state with the
// store.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*models.Run)}
}

// Save stores or replaces a run.
func (s *MemoryStore) Save(_ context.Context, run *models.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run.Clone()
	return nil
}

// Get retrieves a run by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

// List returns run summaries newest-first with the total count for paging.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]models.RunSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Run, 0, len(s.runs))
	for _, r := range s.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.RunSummary{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]models.RunSummary, 0, end-offset)
	for _, r := range all[offset:end] {
		out = append(out, r.Summary())
	}
	return out, total, nil
}

// Delete removes a run from the store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return ErrNotFound
	}
	delete(s.runs, id)
	return nil
}

// Count returns the total number of stored runs.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.runs), nil
}
