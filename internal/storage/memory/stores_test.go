package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	s := NewRunStore()
	ctx := context.Background()

	summary := &domain.RunSummary{
		RunID:      "run-1",
		ScenarioID: domain.ScenarioSteadyState,
		Seed:       42,
		Blocks:     1000,
	}
	require.NoError(t, s.Insert(ctx, summary))

	got, err := s.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, *summary, *got)

	// Duplicate rejected.
	assert.ErrorIs(t, s.Insert(ctx, summary), storage.ErrDuplicateKey)

	// Missing ID.
	_, err = s.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Invalid input.
	assert.ErrorIs(t, s.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.Insert(ctx, &domain.RunSummary{}), storage.ErrInvalidInput)
}

func TestRunStore_CopiesNotAliases(t *testing.T) {
	s := NewRunStore()
	ctx := context.Background()

	summary := &domain.RunSummary{RunID: "run-1", TotalBadDebt: 1}
	require.NoError(t, s.Insert(ctx, summary))
	summary.TotalBadDebt = 999

	got, err := s.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.TotalBadDebt)
}

func TestRunStore_GetByScenarioOrdered(t *testing.T) {
	s := NewRunStore()
	ctx := context.Background()

	for _, seed := range []uint64{5, 1, 3} {
		require.NoError(t, s.Insert(ctx, &domain.RunSummary{
			RunID:      domain.ScenarioBankRun.Name() + string(rune('a'+seed)),
			ScenarioID: domain.ScenarioBankRun,
			Seed:       seed,
		}))
	}
	require.NoError(t, s.Insert(ctx, &domain.RunSummary{
		RunID:      "other",
		ScenarioID: domain.ScenarioBullMarket,
		Seed:       1,
	}))

	got, err := s.GetByScenario(ctx, domain.ScenarioBankRun)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(1), got[0].Seed)
	assert.Equal(t, uint64(5), got[2].Seed)
}

func TestBlockMetricsStore_InsertBulkAndRange(t *testing.T) {
	s := NewBlockMetricsStore()
	ctx := context.Background()

	var blocks []*domain.BlockMetrics
	for b := uint64(1); b <= 10; b++ {
		blocks = append(blocks, &domain.BlockMetrics{RunID: "run-1", Block: b, SpotPrice: 50})
	}
	require.NoError(t, s.InsertBulk(ctx, blocks))

	all, err := s.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, uint64(1), all[0].Block)

	ranged, err := s.GetByBlockRange(ctx, "run-1", 3, 5)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, uint64(3), ranged[0].Block)
	assert.Equal(t, uint64(5), ranged[2].Block)
}

func TestBlockMetricsStore_DuplicateRejected(t *testing.T) {
	s := NewBlockMetricsStore()
	ctx := context.Background()

	require.NoError(t, s.InsertBulk(ctx, []*domain.BlockMetrics{
		{RunID: "run-1", Block: 1},
	}))

	// Duplicate against existing rows.
	err := s.InsertBulk(ctx, []*domain.BlockMetrics{{RunID: "run-1", Block: 1}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate.
	err = s.InsertBulk(ctx, []*domain.BlockMetrics{
		{RunID: "run-2", Block: 1},
		{RunID: "run-2", Block: 1},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Empty batch is a no-op.
	assert.NoError(t, s.InsertBulk(ctx, nil))
}

func TestLiquidationStore_InsertAndGetOrdered(t *testing.T) {
	s := NewLiquidationStore()
	ctx := context.Background()

	records := []*domain.LiquidationRecord{
		{RunID: "run-1", Block: 5, VaultID: 2, BadDebt: 10},
		{RunID: "run-1", Block: 5, VaultID: 1},
		{RunID: "run-1", Block: 3, VaultID: 9},
	}
	require.NoError(t, s.InsertBulk(ctx, records))

	got, err := s.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Block)
	assert.Equal(t, uint64(1), got[1].VaultID)
	assert.Equal(t, uint64(2), got[2].VaultID)

	err = s.InsertBulk(ctx, []*domain.LiquidationRecord{
		{RunID: "run-1", Block: 5, VaultID: 1},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
