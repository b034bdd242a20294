// Package memory holds in-memory store implementations, used by tests and
// by runs that do not persist.
package memory

import (
	"context"
	"sort"
	"sync"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{data: make(map[string]*domain.RunSummary)}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[summary.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation.
	cp := *summary
	s.data[summary.RunID] = &cp
	return nil
}

// GetByID retrieves a summary by run_id. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *summary
	return &cp, nil
}

// GetByScenario retrieves all summaries for a scenario, ordered by seed
// ASC, run_id ASC.
func (s *RunStore) GetByScenario(_ context.Context, scenario domain.ScenarioID) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, summary := range s.data {
		if summary.ScenarioID == scenario {
			cp := *summary
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Seed != result[j].Seed {
			return result[i].Seed < result[j].Seed
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// List retrieves all summaries ordered by created_at ASC, run_id ASC.
func (s *RunStore) List(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSummary, 0, len(s.data))
	for _, summary := range s.data {
		cp := *summary
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAtUnixMs != result[j].CreatedAtUnixMs {
			return result[i].CreatedAtUnixMs < result[j].CreatedAtUnixMs
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}
