package agent

import (
	"flatcoin-lab/internal/amm"
)

// ArbitrageurConfig parameterizes an arbitrageur.
type ArbitrageurConfig struct {
	InitialZAI float64
	InitialZEC float64
	// ThresholdPct is the AMM-vs-external deviation (in percent) that
	// triggers a trade.
	ThresholdPct float64
	// BuyLatencyBlocks delays buys of ZEC on the AMM (selling ZAI).
	BuyLatencyBlocks uint64
	// SellLatencyBlocks delays sells of ZEC on the AMM (buying ZAI).
	SellLatencyBlocks uint64
	// ReplenishPerBlock is ZAI refilled from external capital each block.
	ReplenishPerBlock float64
	// MinProfit is the expected-profit floor (models tx fees); trades
	// below it are skipped.
	MinProfit float64
	// ActivityRate in (0,1] overrides the scenario-wide gate when below 1.
	ActivityRate float64
	// MaxTradePct is the balance fraction traded per opportunity.
	MaxTradePct float64
}

// DefaultArbitrageurConfig returns the baseline arber parameters.
func DefaultArbitrageurConfig() ArbitrageurConfig {
	return ArbitrageurConfig{
		InitialZAI:        100000,
		InitialZEC:        2000,
		ThresholdPct:      0.5,
		BuyLatencyBlocks:  0,
		SellLatencyBlocks: 10,
		ReplenishPerBlock: 0,
		MinProfit:         0,
		ActivityRate:      1,
		MaxTradePct:       0.1,
	}
}

type pendingTrade struct {
	executeAtBlock uint64
	buyZEC         bool
	amount         float64
}

// Arbitrageur closes gaps between the external reference price and the
// AMM spot by trading against the pool.
type Arbitrageur struct {
	Config ArbitrageurConfig

	ZAIBalance  float64
	ZECBalance  float64
	TotalProfit float64

	pending []pendingTrade
}

// NewArbitrageur creates an arbitrageur with its configured capital.
func NewArbitrageur(config ArbitrageurConfig) *Arbitrageur {
	return &Arbitrageur{
		Config:     config,
		ZAIBalance: config.InitialZAI,
		ZECBalance: config.InitialZEC,
	}
}

// executePending runs queued trades whose block has arrived.
func (a *Arbitrageur) executePending(pool *amm.Pool, block uint64) []Action {
	var actions []Action
	for len(a.pending) > 0 && a.pending[0].executeAtBlock <= block {
		trade := a.pending[0]
		a.pending = a.pending[1:]

		if trade.buyZEC {
			spend := trade.amount
			if spend > a.ZAIBalance {
				spend = a.ZAIBalance
			}
			if spend <= 0 {
				continue
			}
			if out, err := pool.SwapZAIForZEC(spend, block); err == nil {
				a.ZAIBalance -= spend
				a.ZECBalance += out
				actions = append(actions, Action{Kind: KindBuyZEC, Spent: spend, Got: out})
			}
			continue
		}

		spend := trade.amount
		if spend > a.ZECBalance {
			spend = a.ZECBalance
		}
		if spend <= 0 {
			continue
		}
		if out, err := pool.SwapZECForZAI(spend, block); err == nil {
			a.ZECBalance -= spend
			a.ZAIBalance += out
			a.TotalProfit += out - spend*pool.SpotPrice()
			actions = append(actions, Action{Kind: KindSellZEC, Spent: spend, Got: out})
		}
	}
	return actions
}

// Act observes the AMM-vs-external gap and trades toward closing it.
func (a *Arbitrageur) Act(pool *amm.Pool, externalPrice float64, block uint64) []Action {
	a.ZAIBalance += a.Config.ReplenishPerBlock

	// External market access: when short on ZEC but holding ZAI, convert
	// at the external price, bounded by the per-block replenish rate.
	if a.Config.ReplenishPerBlock > 0 && a.ZECBalance < 10 && a.ZAIBalance > 0 && externalPrice > 0 {
		convert := a.Config.ReplenishPerBlock
		if convert > a.ZAIBalance {
			convert = a.ZAIBalance
		}
		a.ZAIBalance -= convert
		a.ZECBalance += convert / externalPrice
	}

	actions := a.executePending(pool, block)

	spot := pool.SpotPrice()
	deviationPct := (spot - externalPrice) / externalPrice * 100

	switch {
	case deviationPct > a.Config.ThresholdPct:
		// AMM rich: sell ZEC into the pool, pushing spot down.
		size := a.ZECBalance * a.Config.MaxTradePct
		if size <= 0.01 {
			break
		}
		expected := pool.QuoteZECForZAI(size)
		if expected-size*externalPrice < a.Config.MinProfit {
			break
		}
		if a.Config.SellLatencyBlocks == 0 {
			if out, err := pool.SwapZECForZAI(size, block); err == nil {
				a.ZECBalance -= size
				a.ZAIBalance += out
				actions = append(actions, Action{Kind: KindSellZEC, Spent: size, Got: out})
			}
		} else {
			a.pending = append(a.pending, pendingTrade{
				executeAtBlock: block + a.Config.SellLatencyBlocks,
				amount:         size,
			})
			actions = append(actions, queued("sell %.4f ZEC at block %d", size, block+a.Config.SellLatencyBlocks))
		}

	case deviationPct < -a.Config.ThresholdPct:
		// AMM cheap: buy ZEC with ZAI, pushing spot up.
		value := a.ZAIBalance * a.Config.MaxTradePct
		if value <= 0.01 {
			break
		}
		expected := pool.QuoteZAIForZEC(value)
		if expected*externalPrice-value < a.Config.MinProfit {
			break
		}
		if a.Config.BuyLatencyBlocks == 0 {
			if out, err := pool.SwapZAIForZEC(value, block); err == nil {
				a.ZAIBalance -= value
				a.ZECBalance += out
				actions = append(actions, Action{Kind: KindBuyZEC, Spent: value, Got: out})
			}
		} else {
			a.pending = append(a.pending, pendingTrade{
				executeAtBlock: block + a.Config.BuyLatencyBlocks,
				buyZEC:         true,
				amount:         value,
			})
			actions = append(actions, queued("buy ZEC with %.4f ZAI at block %d", value, block+a.Config.BuyLatencyBlocks))
		}
	}

	return actions
}
