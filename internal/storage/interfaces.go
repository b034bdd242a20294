// Package storage defines the persistence interfaces for completed runs.
// Runs replay deterministically from their inputs, so storage is an
// optional sink for analysis, never a correctness dependency.
package storage

import (
	"context"

	"flatcoin-lab/internal/domain"
)

// RunStore provides access to run_summaries storage.
type RunStore interface {
	// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary by run_id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetByScenario retrieves all summaries for a scenario, ordered by
	// seed ASC, run_id ASC.
	GetByScenario(ctx context.Context, scenario domain.ScenarioID) ([]*domain.RunSummary, error)

	// List retrieves all summaries ordered by created_at ASC, run_id ASC.
	List(ctx context.Context) ([]*domain.RunSummary, error)
}

// BlockMetricsStore provides access to block_metrics timeseries storage.
type BlockMetricsStore interface {
	// InsertBulk adds the block series of one run. Fails the entire batch
	// on a duplicate (run_id, block).
	InsertBulk(ctx context.Context, blocks []*domain.BlockMetrics) error

	// GetByRunID retrieves all blocks for a run, ordered by block ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.BlockMetrics, error)

	// GetByBlockRange retrieves blocks for a run within [start, end]
	// (inclusive), ordered by block ASC.
	GetByBlockRange(ctx context.Context, runID string, start, end uint64) ([]*domain.BlockMetrics, error)
}

// LiquidationStore provides access to liquidation_records storage.
type LiquidationStore interface {
	// InsertBulk adds liquidation records. Fails the entire batch on a
	// duplicate (run_id, block, vault_id).
	InsertBulk(ctx context.Context, records []*domain.LiquidationRecord) error

	// GetByRunID retrieves all records for a run, ordered by block ASC,
	// vault_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.LiquidationRecord, error)
}
