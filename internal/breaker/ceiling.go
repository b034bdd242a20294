package breaker

import (
	"fmt"

	"flatcoin-lab/internal/amm"
)

// CeilingConfig parameterizes the dynamic debt ceiling.
type CeilingConfig struct {
	// InitialCeiling is the starting (and maximum) total debt allowed.
	InitialCeiling float64
	// MinCeiling floors repeated reductions.
	MinCeiling float64
	// ReductionFactor is the fraction cut from the ceiling on a trip.
	ReductionFactor float64
	// GrowthPerBlock regrows the ceiling toward the initial value when
	// the system is healthy.
	GrowthPerBlock float64
	// DeviationThreshold on |spot - redemption| / redemption trips a
	// reduction.
	DeviationThreshold float64
	// MaxDebtRatio bounds system debt over AMM-price-denominated
	// collateral value; exceeding it trips a reduction.
	MaxDebtRatio float64
}

// DefaultCeilingConfig returns the baseline debt ceiling parameters.
func DefaultCeilingConfig() CeilingConfig {
	return CeilingConfig{
		InitialCeiling:     1000000,
		MinCeiling:         100000,
		ReductionFactor:    0.10,
		GrowthPerBlock:     0.1,
		DeviationThreshold: 0.10,
		MaxDebtRatio:       0.65,
	}
}

// DebtCeiling shrinks the allowed system debt while the market price
// deviates from the redemption price, and regrows it when calm.
type DebtCeiling struct {
	Config         CeilingConfig
	CurrentCeiling float64
	Reductions     uint64

	firedThisBlock bool
}

// NewDebtCeiling creates a dynamic debt ceiling.
func NewDebtCeiling(config CeilingConfig) *DebtCeiling {
	return &DebtCeiling{Config: config, CurrentCeiling: config.InitialCeiling}
}

// Update adjusts the ceiling from the block's price deviation and the
// system debt ratio D/E (total debt over collateral valued at spot).
func (d *DebtCeiling) Update(pool *amm.Pool, redemptionPrice, totalDebt, totalCollateral float64) *Action {
	d.firedThisBlock = false

	deviation := (pool.SpotPrice() - redemptionPrice) / redemptionPrice
	if deviation < 0 {
		deviation = -deviation
	}

	debtRatio := 0.0
	if collateralValue := totalCollateral * pool.SpotPrice(); collateralValue > 0 {
		debtRatio = totalDebt / collateralValue
	}

	if deviation > d.Config.DeviationThreshold || debtRatio > d.Config.MaxDebtRatio {
		reduction := d.CurrentCeiling * d.Config.ReductionFactor
		d.CurrentCeiling -= reduction
		if d.CurrentCeiling < d.Config.MinCeiling {
			d.CurrentCeiling = d.Config.MinCeiling
		}
		d.Reductions++
		d.firedThisBlock = true

		return &Action{
			Kind:   ActionReduceCeiling,
			Value:  d.CurrentCeiling,
			Reason: fmt.Sprintf("deviation %.2f%% / debt ratio %.2f over limits; ceiling reduced to %.0f",
				deviation*100, debtRatio, d.CurrentCeiling),
		}
	}

	if d.CurrentCeiling < d.Config.InitialCeiling {
		d.CurrentCeiling += d.Config.GrowthPerBlock
		if d.CurrentCeiling > d.Config.InitialCeiling {
			d.CurrentCeiling = d.Config.InitialCeiling
		}
	}
	return nil
}

// CanMint reports whether new debt fits under the ceiling.
func (d *DebtCeiling) CanMint(currentTotalDebt, newDebt float64) bool {
	return currentTotalDebt+newDebt <= d.CurrentCeiling
}

// FiredThisBlock reports whether the last Update reduced the ceiling.
func (d *DebtCeiling) FiredThisBlock() bool {
	return d.firedThisBlock
}
