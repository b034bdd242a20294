// Package verdict classifies a completed run as PASS, SOFT FAIL, or
// HARD FAIL against configurable stability criteria.
package verdict

import (
	"fmt"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/metrics"
)

// Verdict is the final run classification.
type Verdict string

const (
	Pass     Verdict = "PASS"
	SoftFail Verdict = "SOFT FAIL"
	HardFail Verdict = "HARD FAIL"
)

// blocksPerHour at 75-second blocks.
const blocksPerHour = 48

// Thresholds parameterize the classification.
type Thresholds struct {
	// BadDebtPctHard: bad debt beyond this fraction of peak debt is a
	// hard fail.
	BadDebtPctHard float64
	// DeviationSoft is the sustained-deviation level for a soft fail.
	DeviationSoft float64
	// SustainedBlocks of deviation beyond DeviationSoft trigger the soft
	// fail.
	SustainedBlocks uint64
	// RecoveryHoursSoft: taking longer than this to re-peg is a soft fail.
	RecoveryHoursSoft uint64
	// VolatilityRatioSoft: spot std/mean above this is a soft fail.
	VolatilityRatioSoft float64
	// DeathSpiralDropPct: price collapse beyond this fraction with no
	// recovery is a hard fail.
	DeathSpiralDropPct float64
	// CascadeTripsHard: more emergency halts than this is a hard fail.
	CascadeTripsHard uint64
}

// DefaultThresholds returns the baseline classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BadDebtPctHard:      0.05,
		DeviationSoft:       0.20,
		SustainedBlocks:     blocksPerHour,
		RecoveryHoursSoft:   72,
		VolatilityRatioSoft: 0.3,
		DeathSpiralDropPct:  0.90,
		CascadeTripsHard:    3,
	}
}

// Criterion is one evaluated check.
type Criterion struct {
	Name     string
	Passed   bool
	Severity Verdict
	Details  string
}

// Result is the full classification with its checklist.
type Result struct {
	Overall  Verdict
	Criteria []Criterion
}

// Evaluate classifies a block series against the thresholds. targetPrice
// is the peg reference (initial redemption price).
func Evaluate(blocks []domain.BlockMetrics, targetPrice float64, th Thresholds) Result {
	var criteria []Criterion
	worst := Pass

	record := func(c Criterion) {
		criteria = append(criteria, c)
		if !c.Passed {
			if c.Severity == HardFail {
				worst = HardFail
			} else if worst == Pass {
				worst = SoftFail
			}
		}
	}

	// Hard: solvency. Collateral valued at TWAP must cover total debt.
	insolvent := false
	for _, m := range blocks {
		if m.TotalDebt > 0 && m.TotalCollateral*m.TwapPrice < m.TotalDebt {
			insolvent = true
			break
		}
	}
	record(Criterion{
		Name:     "Solvency",
		Passed:   !insolvent,
		Severity: HardFail,
		Details:  solvencyDetails(insolvent),
	})

	// Hard: bad debt ratio against peak debt.
	maxDebt := 1.0
	for _, m := range blocks {
		if m.TotalDebt > maxDebt {
			maxDebt = m.TotalDebt
		}
	}
	var finalBadDebt float64
	if len(blocks) > 0 {
		finalBadDebt = blocks[len(blocks)-1].BadDebt
	}
	badDebtPct := finalBadDebt / maxDebt
	record(Criterion{
		Name:     fmt.Sprintf("Bad debt < %.0f%%", th.BadDebtPctHard*100),
		Passed:   badDebtPct <= th.BadDebtPctHard,
		Severity: HardFail,
		Details:  fmt.Sprintf("bad debt ratio %.2f%% of peak debt", badDebtPct*100),
	})

	// Hard: death spiral — collapse with no recovery in the tail.
	record(deathSpiralCriterion(blocks, th))

	// Hard: repeated cascade halts.
	trips := haltTransitions(blocks)
	record(Criterion{
		Name:     fmt.Sprintf("Cascade halts <= %d", th.CascadeTripsHard),
		Passed:   trips <= th.CascadeTripsHard,
		Severity: HardFail,
		Details:  fmt.Sprintf("emergency halts: %d (limit %d)", trips, th.CascadeTripsHard),
	})

	// Soft: sustained peg deviation.
	maxConsecutive := maxConsecutiveDeviation(blocks, targetPrice, th.DeviationSoft)
	record(Criterion{
		Name:     fmt.Sprintf("Peg deviation < %.0f%% sustained", th.DeviationSoft*100),
		Passed:   maxConsecutive <= th.SustainedBlocks,
		Severity: SoftFail,
		Details: fmt.Sprintf("max consecutive blocks beyond %.0f%%: %d (limit %d)",
			th.DeviationSoft*100, maxConsecutive, th.SustainedBlocks),
	})

	// Soft: recovery time.
	recovery := metrics.RecoveryBlocks(blocks, targetPrice, 0.10)
	limit := th.RecoveryHoursSoft * blocksPerHour
	record(Criterion{
		Name:     fmt.Sprintf("Recovery < %dh", th.RecoveryHoursSoft),
		Passed:   recovery <= limit,
		Severity: SoftFail,
		Details: fmt.Sprintf("recovery %d blocks (%.1f hours)",
			recovery, float64(recovery)/blocksPerHour),
	})

	// Soft: volatility ratio.
	summary := metrics.ComputeSummary(blocks, targetPrice)
	record(Criterion{
		Name:     fmt.Sprintf("Volatility ratio < %.1f", th.VolatilityRatioSoft),
		Passed:   summary.VolatilityRatio < th.VolatilityRatioSoft,
		Severity: SoftFail,
		Details:  fmt.Sprintf("volatility ratio %.4f (std/mean)", summary.VolatilityRatio),
	})

	return Result{Overall: worst, Criteria: criteria}
}

func solvencyDetails(insolvent bool) string {
	if insolvent {
		return "system became insolvent (collateral value < total debt)"
	}
	return "system remained solvent throughout"
}

func deathSpiralCriterion(blocks []domain.BlockMetrics, th Thresholds) Criterion {
	spiral := false
	if len(blocks) > 200 {
		initial := blocks[0].SpotPrice
		final := blocks[len(blocks)-1].SpotPrice
		dropped := final < initial*(1-th.DeathSpiralDropPct)
		noRecovery := true
		for _, m := range blocks[len(blocks)-100:] {
			if m.SpotPrice >= initial*0.15 {
				noRecovery = false
				break
			}
		}
		spiral = dropped && noRecovery
	}

	details := "no death spiral detected"
	if spiral {
		details = fmt.Sprintf("price collapsed >%.0f%% with no recovery", th.DeathSpiralDropPct*100)
	}
	return Criterion{
		Name:     "No death spiral",
		Passed:   !spiral,
		Severity: HardFail,
		Details:  details,
	}
}

// haltTransitions counts distinct entries into the halted state.
func haltTransitions(blocks []domain.BlockMetrics) uint64 {
	var trips uint64
	prev := false
	for _, m := range blocks {
		if m.Halted && !prev {
			trips++
		}
		prev = m.Halted
	}
	return trips
}

func maxConsecutiveDeviation(blocks []domain.BlockMetrics, target, threshold float64) uint64 {
	var current, max uint64
	for _, m := range blocks {
		dev := (m.SpotPrice - target) / target
		if dev < 0 {
			dev = -dev
		}
		if dev > threshold {
			current++
			if current > max {
				max = current
			}
		} else {
			current = 0
		}
	}
	return max
}
