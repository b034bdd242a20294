package metrics

import (
	"fmt"
	"math"
	"sort"

	"flatcoin-lab/internal/domain"
)

func formatLiquidationDetails(m domain.BlockMetrics) string {
	return fmt.Sprintf("count=%d,bad_debt=%.2f", m.LiquidationCount, m.BadDebt)
}

func formatBreakerDetails(m domain.BlockMetrics) string {
	return fmt.Sprintf("fires=%d,ceiling=%.0f,halted=%t", m.BreakerFires, m.DebtCeiling, m.Halted)
}

// KPIStats describes the distribution of one KPI across Monte Carlo runs.
type KPIStats struct {
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
	P95    float64
	P99    float64
}

// MonteCarloAggregate holds distribution statistics per KPI over a batch
// of run summaries for a single (scenario, config) cell.
type MonteCarloAggregate struct {
	ScenarioID domain.ScenarioID
	Runs       int

	MeanPegDeviation KPIStats
	MaxPegDeviation  KPIStats
	TotalBadDebt     KPIStats
	Liquidations     KPIStats
	BreakerTriggers  KPIStats
	MinSolvency      KPIStats
}

// Aggregate computes Monte Carlo statistics from a batch of summaries.
// Summaries are sorted by seed before extraction so the output is
// independent of arrival order.
func Aggregate(scenario domain.ScenarioID, summaries []domain.RunSummary) MonteCarloAggregate {
	agg := MonteCarloAggregate{ScenarioID: scenario, Runs: len(summaries)}
	if len(summaries) == 0 {
		return agg
	}

	sorted := make([]domain.RunSummary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seed < sorted[j].Seed })

	agg.MeanPegDeviation = statsOf(sorted, func(s domain.RunSummary) float64 { return s.MeanPegDeviation })
	agg.MaxPegDeviation = statsOf(sorted, func(s domain.RunSummary) float64 { return s.MaxPegDeviation })
	agg.TotalBadDebt = statsOf(sorted, func(s domain.RunSummary) float64 { return s.TotalBadDebt })
	agg.Liquidations = statsOf(sorted, func(s domain.RunSummary) float64 { return float64(s.TotalLiquidations) })
	agg.BreakerTriggers = statsOf(sorted, func(s domain.RunSummary) float64 { return float64(s.BreakerTriggers) })
	agg.MinSolvency = statsOf(sorted, func(s domain.RunSummary) float64 { return s.MinSolvencyRatio })
	return agg
}

func statsOf(summaries []domain.RunSummary, pick func(domain.RunSummary) float64) KPIStats {
	values := make([]float64, len(summaries))
	for i, s := range summaries {
		values[i] = pick(s)
	}

	mean := meanOf(values)
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return KPIStats{
		Mean:   mean,
		Stddev: stddevOf(values, mean),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P95:    percentile(sorted, 0.95),
		P99:    percentile(sorted, 0.99),
	}
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddevOf is the sample standard deviation (n-1 denominator): the seeds
// drawn are a sample of the seed space.
func stddevOf(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile uses linear interpolation over a pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
