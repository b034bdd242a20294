// Package metrics turns per-block samples into run summaries and
// aggregates Monte Carlo batches into distribution statistics.
package metrics

import (
	"math"

	"flatcoin-lab/internal/domain"
)

// ComputeSummary reduces a block series to its run summary. The peg
// reference is the configured target price (the initial redemption
// price), matching the verdict thresholds.
func ComputeSummary(blocks []domain.BlockMetrics, targetPrice float64) domain.RunSummary {
	if len(blocks) == 0 {
		return domain.RunSummary{}
	}

	n := float64(len(blocks))
	var devSum, devMax float64
	var liq uint32
	var fires uint32
	var haltBlocks, pauseBlocks, zombieBlocks uint64
	var priceSum float64
	minPrice := math.Inf(1)
	maxPrice := math.Inf(-1)
	minSolvency := math.Inf(1)
	var maxZombieGap float64

	for _, m := range blocks {
		dev := pegDeviation(m.SpotPrice, targetPrice)
		devSum += dev
		if dev > devMax {
			devMax = dev
		}

		liq += m.LiquidationCount
		fires += m.BreakerFires
		if m.Halted {
			haltBlocks++
		}
		if m.MintingPaused {
			pauseBlocks++
		}
		if m.ZombieVaultCount > 0 {
			zombieBlocks++
		}
		if m.MaxZombieGap > maxZombieGap {
			maxZombieGap = m.MaxZombieGap
		}

		priceSum += m.SpotPrice
		if m.SpotPrice < minPrice {
			minPrice = m.SpotPrice
		}
		if m.SpotPrice > maxPrice {
			maxPrice = m.SpotPrice
		}
		if s := m.SolvencyRatio(); s < minSolvency {
			minSolvency = s
		}
	}

	last := blocks[len(blocks)-1]
	meanPrice := priceSum / n

	return domain.RunSummary{
		Blocks:               uint64(len(blocks)),
		MeanPegDeviation:     devSum / n,
		MaxPegDeviation:      devMax,
		FinalPegDeviation:    pegDeviation(last.SpotPrice, targetPrice),
		TotalLiquidations:    liq,
		TotalBadDebt:         last.BadDebt,
		BreakerTriggers:      fires,
		HaltBlocks:           haltBlocks,
		PauseBlocks:          pauseBlocks,
		MeanSpotPrice:        meanPrice,
		MinSpotPrice:         minPrice,
		MaxSpotPrice:         maxPrice,
		FinalSpotPrice:       last.SpotPrice,
		FinalRedemptionPrice: last.RedemptionPrice,
		FinalDebtCeiling:     last.DebtCeiling,
		MinSolvencyRatio:     minSolvency,
		VolatilityRatio:      volatilityRatio(blocks, meanPrice),
		RecoveryBlocks:       RecoveryBlocks(blocks, targetPrice, 0.10),
		ZombieBlocks:         zombieBlocks,
		MaxZombieGap:         maxZombieGap,
	}
}

func pegDeviation(spot, target float64) float64 {
	if target == 0 {
		return 0
	}
	d := (spot - target) / target
	if d < 0 {
		return -d
	}
	return d
}

// volatilityRatio is std/mean of the spot price (population stddev; runs
// cover the full series, not a sample of it).
func volatilityRatio(blocks []domain.BlockMetrics, mean float64) float64 {
	if mean <= 0 || len(blocks) == 0 {
		return 0
	}
	var sumSq float64
	for _, m := range blocks {
		d := m.SpotPrice - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq/float64(len(blocks))) / mean
}

// RecoveryBlocks returns how many blocks pass before the peg deviation
// drops below the threshold and stays there through the end of the run.
// Zero means the run never exceeded the threshold or recovered instantly.
func RecoveryBlocks(blocks []domain.BlockMetrics, targetPrice, threshold float64) uint64 {
	lastBad := -1
	for i, m := range blocks {
		if pegDeviation(m.SpotPrice, targetPrice) > threshold {
			lastBad = i
		}
	}
	if lastBad < 0 {
		return 0
	}
	return uint64(lastBad + 1)
}

// ExtractEvents pulls discrete events (liquidation bursts, breaker fires)
// out of a block series for the events report.
func ExtractEvents(blocks []domain.BlockMetrics) []domain.Event {
	var events []domain.Event
	for _, m := range blocks {
		if m.LiquidationCount > 0 {
			events = append(events, domain.Event{
				Block:     m.Block,
				EventType: "liquidation",
				Details:   formatLiquidationDetails(m),
			})
		}
		if m.BreakerFires > 0 {
			events = append(events, domain.Event{
				Block:     m.Block,
				EventType: "breaker",
				Details:   formatBreakerDetails(m),
			})
		}
	}
	return events
}
