package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/domain"
)

func blocksWithPrices(prices []float64) []domain.BlockMetrics {
	blocks := make([]domain.BlockMetrics, len(prices))
	for i, p := range prices {
		blocks[i] = domain.BlockMetrics{
			Block:           uint64(i + 1),
			ExternalPrice:   50,
			SpotPrice:       p,
			TwapPrice:       p,
			TotalDebt:       1000,
			TotalCollateral: 100,
		}
	}
	return blocks
}

func TestComputeSummary_Empty(t *testing.T) {
	s := ComputeSummary(nil, 50)
	assert.Equal(t, domain.RunSummary{}, s)
}

func TestComputeSummary_PegDeviations(t *testing.T) {
	blocks := blocksWithPrices([]float64{50, 55, 45, 50})
	s := ComputeSummary(blocks, 50)

	// Deviations: 0, 0.1, 0.1, 0.
	assert.InDelta(t, 0.05, s.MeanPegDeviation, 1e-12)
	assert.InDelta(t, 0.10, s.MaxPegDeviation, 1e-12)
	assert.InDelta(t, 0.0, s.FinalPegDeviation, 1e-12)
	assert.Equal(t, uint64(4), s.Blocks)
	assert.Equal(t, 55.0, s.MaxSpotPrice)
	assert.Equal(t, 45.0, s.MinSpotPrice)
}

func TestComputeSummary_CountersAndSolvency(t *testing.T) {
	blocks := blocksWithPrices([]float64{50, 50, 50})
	blocks[0].LiquidationCount = 2
	blocks[1].BreakerFires = 1
	blocks[1].Halted = true
	blocks[2].MintingPaused = true
	blocks[2].BadDebt = 123.4
	blocks[2].ZombieVaultCount = 1
	blocks[2].MaxZombieGap = 0.7
	blocks[1].TotalDebt = 10000 // solvency 100*50/10000 = 0.5

	s := ComputeSummary(blocks, 50)

	assert.Equal(t, uint32(2), s.TotalLiquidations)
	assert.Equal(t, uint32(1), s.BreakerTriggers)
	assert.Equal(t, uint64(1), s.HaltBlocks)
	assert.Equal(t, uint64(1), s.PauseBlocks)
	assert.InDelta(t, 123.4, s.TotalBadDebt, 1e-12)
	assert.Equal(t, uint64(1), s.ZombieBlocks)
	assert.InDelta(t, 0.7, s.MaxZombieGap, 1e-12)
	assert.InDelta(t, 0.5, s.MinSolvencyRatio, 1e-12)
}

func TestRecoveryBlocks(t *testing.T) {
	// Deviation path: ok, bad, bad, ok, ok => last bad index 2 => 3.
	blocks := blocksWithPrices([]float64{50, 40, 40, 50, 50})
	assert.Equal(t, uint64(3), RecoveryBlocks(blocks, 50, 0.10))

	// Never bad.
	blocks = blocksWithPrices([]float64{50, 51, 49})
	assert.Equal(t, uint64(0), RecoveryBlocks(blocks, 50, 0.10))

	// Never recovers: last block still bad.
	blocks = blocksWithPrices([]float64{50, 40, 40})
	assert.Equal(t, uint64(3), RecoveryBlocks(blocks, 50, 0.10))
}

func TestVolatilityRatio_FlatIsZero(t *testing.T) {
	blocks := blocksWithPrices([]float64{50, 50, 50, 50})
	s := ComputeSummary(blocks, 50)
	assert.InDelta(t, 0, s.VolatilityRatio, 1e-12)

	blocks = blocksWithPrices([]float64{40, 60, 40, 60})
	s = ComputeSummary(blocks, 50)
	assert.Greater(t, s.VolatilityRatio, 0.1)
}

func TestExtractEvents(t *testing.T) {
	blocks := blocksWithPrices([]float64{50, 50, 50})
	blocks[1].LiquidationCount = 3
	blocks[1].BadDebt = 10
	blocks[2].BreakerFires = 2

	events := ExtractEvents(blocks)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(2), events[0].Block)
	assert.Equal(t, "liquidation", events[0].EventType)
	assert.Contains(t, events[0].Details, "count=3")
	assert.Equal(t, "breaker", events[1].EventType)
}

func TestAggregate_Stats(t *testing.T) {
	summaries := []domain.RunSummary{
		{Seed: 3, MeanPegDeviation: 0.03, TotalLiquidations: 3, TotalBadDebt: 30},
		{Seed: 1, MeanPegDeviation: 0.01, TotalLiquidations: 1, TotalBadDebt: 10},
		{Seed: 2, MeanPegDeviation: 0.02, TotalLiquidations: 2, TotalBadDebt: 20},
	}

	agg := Aggregate(domain.ScenarioSteadyState, summaries)

	assert.Equal(t, 3, agg.Runs)
	assert.InDelta(t, 0.02, agg.MeanPegDeviation.Mean, 1e-12)
	assert.InDelta(t, 0.01, agg.MeanPegDeviation.Min, 1e-12)
	assert.InDelta(t, 0.03, agg.MeanPegDeviation.Max, 1e-12)
	assert.InDelta(t, 0.01, agg.MeanPegDeviation.Stddev, 1e-12)
	assert.InDelta(t, 20, agg.TotalBadDebt.Mean, 1e-12)

	// Order independence.
	reordered := []domain.RunSummary{summaries[1], summaries[0], summaries[2]}
	agg2 := Aggregate(domain.ScenarioSteadyState, reordered)
	assert.Equal(t, agg, agg2)
}

func TestAggregate_Percentiles(t *testing.T) {
	var summaries []domain.RunSummary
	for i := 1; i <= 100; i++ {
		summaries = append(summaries, domain.RunSummary{
			Seed:         uint64(i),
			TotalBadDebt: float64(i),
		})
	}

	agg := Aggregate(domain.ScenarioSteadyState, summaries)
	assert.InDelta(t, 95.05, agg.TotalBadDebt.P95, 0.01)
	assert.InDelta(t, 99.01, agg.TotalBadDebt.P99, 0.01)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(domain.ScenarioBankRun, nil)
	assert.Equal(t, 0, agg.Runs)
	assert.Equal(t, domain.ScenarioBankRun, agg.ScenarioID)
}
