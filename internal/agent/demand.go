package agent

import "flatcoin-lab/internal/amm"

// DemandAgentConfig parameterizes organic ZAI demand.
type DemandAgentConfig struct {
	// Elasticity scales discount buying: each block spends Elasticity times
	// the discount to par (as a fraction) of the ZEC balance.
	Elasticity float64
	// BaseRate is the ZEC spent on ZAI per block regardless of price.
	BaseRate float64
	// ExitThresholdPct starts the exit timer when |deviation| exceeds it.
	ExitThresholdPct float64
	// ExitWindowBlocks of sustained deviation trigger a panic sell.
	ExitWindowBlocks uint64
	// PanicSellFraction of the ZAI balance dumped on panic.
	PanicSellFraction float64
	InitialZEC        float64
}

// DefaultDemandAgentConfig returns the baseline demand parameters.
func DefaultDemandAgentConfig() DemandAgentConfig {
	return DemandAgentConfig{
		Elasticity:        0.05,
		BaseRate:          1,
		ExitThresholdPct:  5,
		ExitWindowBlocks:  48,
		PanicSellFraction: 0.5,
		InitialZEC:        5000,
	}
}

// DemandAgent buys ZAI when it trades below the redemption price and
// panic-sells after a sustained de-peg.
type DemandAgent struct {
	Config DemandAgentConfig

	ZECBalance float64
	ZAIBalance float64
	Panicked   bool

	deviationBlocks uint64
}

// NewDemandAgent creates a demand agent.
func NewDemandAgent(config DemandAgentConfig) *DemandAgent {
	return &DemandAgent{Config: config, ZECBalance: config.InitialZEC}
}

// Act evaluates the peg and either panic-sells or buys.
func (d *DemandAgent) Act(pool *amm.Pool, redemptionPrice float64, block uint64) Action {
	market := pool.SpotPrice()
	// Positive deviation: ZAI cheap relative to par, a buying opportunity.
	deviationPct := (redemptionPrice - market) / redemptionPrice * 100

	abs := deviationPct
	if abs < 0 {
		abs = -abs
	}
	if abs > d.Config.ExitThresholdPct {
		d.deviationBlocks++
	} else {
		d.deviationBlocks = 0
	}

	// Sustained de-peg: one-time panic sell.
	if !d.Panicked && d.deviationBlocks >= d.Config.ExitWindowBlocks && d.ZAIBalance > 0.01 {
		sell := d.ZAIBalance * d.Config.PanicSellFraction
		if sell > 0.01 {
			if out, err := pool.SwapZAIForZEC(sell, block); err == nil {
				d.ZAIBalance -= sell
				d.ZECBalance += out
				d.Panicked = true
				return Action{Kind: KindPanicSellZAI, Spent: sell, Got: out}
			}
		}
	}

	buy := d.Config.BaseRate
	if deviationPct > 0 {
		buy += d.ZECBalance * d.Config.Elasticity * (deviationPct / 100)
	}
	if buy > d.ZECBalance {
		buy = d.ZECBalance
	}

	if buy > 0.01 {
		if out, err := pool.SwapZECForZAI(buy, block); err == nil {
			d.ZECBalance -= buy
			d.ZAIBalance += out
			return Action{Kind: KindBuyZAI, Spent: buy, Got: out}
		}
	}
	return None
}
