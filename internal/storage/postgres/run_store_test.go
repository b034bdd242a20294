package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

func sampleSummary(runID string, scenario domain.ScenarioID, seed uint64) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:                runID,
		ScenarioID:           scenario,
		Seed:                 seed,
		Blocks:               1000,
		MeanPegDeviation:     0.012,
		MaxPegDeviation:      0.034,
		FinalPegDeviation:    0.001,
		TotalLiquidations:    3,
		TotalBadDebt:         12.5,
		BreakerTriggers:      1,
		HaltBlocks:           2,
		PauseBlocks:          48,
		MeanSpotPrice:        49.8,
		MinSpotPrice:         42.1,
		MaxSpotPrice:         51.0,
		FinalSpotPrice:       49.9,
		FinalRedemptionPrice: 50.02,
		FinalDebtCeiling:     900000,
		MinSolvencyRatio:     1.8,
		VolatilityRatio:      0.05,
		RecoveryBlocks:       120,
		ZombieBlocks:         4,
		MaxZombieGap:         0.6,
		VerdictLabel:         "PASS",
		CreatedAtUnixMs:      1700000000000,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	summary := sampleSummary("run-001", domain.ScenarioBlackThursday, 42)
	require.NoError(t, store.Insert(ctx, summary))

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)
	assert.Equal(t, *summary, *got)
}

func TestRunStore_DuplicateRejected(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleSummary("run-001", domain.ScenarioSteadyState, 1)))
	err := store.Insert(ctx, sampleSummary("run-001", domain.ScenarioSteadyState, 1))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_GetByScenarioOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleSummary("run-b", domain.ScenarioBankRun, 7)))
	require.NoError(t, store.Insert(ctx, sampleSummary("run-a", domain.ScenarioBankRun, 3)))
	require.NoError(t, store.Insert(ctx, sampleSummary("run-c", domain.ScenarioBullMarket, 1)))

	got, err := store.GetByScenario(ctx, domain.ScenarioBankRun)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Seed)
	assert.Equal(t, uint64(7), got[1].Seed)
}

func TestRunStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	s1 := sampleSummary("run-1", domain.ScenarioSteadyState, 1)
	s1.CreatedAtUnixMs = 100
	s2 := sampleSummary("run-2", domain.ScenarioSteadyState, 2)
	s2.CreatedAtUnixMs = 50
	require.NoError(t, store.Insert(ctx, s1))
	require.NoError(t, store.Insert(ctx, s2))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, "run-1", got[1].RunID)
}

func TestLiquidationStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(pool)
	ctx := context.Background()

	records := []*domain.LiquidationRecord{
		{RunID: "run-1", Block: 10, VaultID: 2, Owner: "a", Mode: "transparent", CollateralSeized: 100, DebtToCover: 3000, ProceedsZAI: 4500, Penalty: 390, SurplusToOwner: 1110},
		{RunID: "run-1", Block: 10, VaultID: 1, Owner: "b", Mode: "transparent", CollateralSeized: 50, DebtToCover: 1500, ProceedsZAI: 1200, BadDebt: 300},
	}
	require.NoError(t, store.InsertBulk(ctx, records))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].VaultID)
	assert.Equal(t, uint64(2), got[1].VaultID)
	assert.Equal(t, 300.0, got[0].BadDebt)
}

func TestLiquidationStore_BatchAtomicOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidationStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.LiquidationRecord{
		{RunID: "run-1", Block: 1, VaultID: 1, Owner: "a", Mode: "transparent"},
	}))

	err := store.InsertBulk(ctx, []*domain.LiquidationRecord{
		{RunID: "run-1", Block: 2, VaultID: 5, Owner: "a", Mode: "transparent"},
		{RunID: "run-1", Block: 1, VaultID: 1, Owner: "a", Mode: "transparent"},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The non-duplicate row of the failed batch must not have landed.
	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
