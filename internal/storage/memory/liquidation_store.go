package memory

import (
	"context"
	"sort"
	"sync"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

// LiquidationStore is an in-memory implementation of
// storage.LiquidationStore.
type LiquidationStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.LiquidationRecord // keyed by run_id
}

// NewLiquidationStore creates a new in-memory liquidation store.
func NewLiquidationStore() *LiquidationStore {
	return &LiquidationStore{data: make(map[string][]*domain.LiquidationRecord)}
}

// Compile-time interface check.
var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// InsertBulk adds liquidation records. Fails the entire batch on a
// duplicate (run_id, block, vault_id).
func (s *LiquidationStore) InsertBulk(_ context.Context, records []*domain.LiquidationRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	type key struct {
		runID   string
		block   uint64
		vaultID uint64
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		k := key{r.RunID, r.Block, r.VaultID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		for _, existing := range s.data[r.RunID] {
			if existing.Block == r.Block && existing.VaultID == r.VaultID {
				return storage.ErrDuplicateKey
			}
		}
	}

	for _, r := range records {
		cp := *r
		s.data[r.RunID] = append(s.data[r.RunID], &cp)
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by block ASC,
// vault_id ASC.
func (s *LiquidationStore) GetByRunID(_ context.Context, runID string) ([]*domain.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[runID]
	result := make([]*domain.LiquidationRecord, 0, len(rows))
	for _, r := range rows {
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Block != result[j].Block {
			return result[i].Block < result[j].Block
		}
		return result[i].VaultID < result[j].VaultID
	})
	return result, nil
}
