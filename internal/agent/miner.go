package agent

import "flatcoin-lab/internal/amm"

// MinerConfig parameterizes miner sell pressure.
type MinerConfig struct {
	// BlockReward is ZEC received per block.
	BlockReward float64
	// SellFraction of the reward is sold.
	SellFraction float64
	// AMMFraction of the sale goes through the pool; the rest is OTC.
	AMMFraction float64
	// SellImmediately sells each block; otherwise sales batch.
	SellImmediately bool
	// BatchInterval in blocks between batch sells.
	BatchInterval uint64
}

// DefaultMinerConfig returns the baseline miner parameters.
func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		BlockReward:     1.25,
		SellFraction:    0.5,
		AMMFraction:     0.3,
		SellImmediately: true,
		BatchInterval:   48,
	}
}

// Miner receives block rewards and sells a portion through the pool,
// either continuously or in batches.
type Miner struct {
	Config MinerConfig

	ZECBalance float64
	ZAIBalance float64

	accumulatedSell float64
	lastBatchBlock  uint64
}

// NewMiner creates a miner.
func NewMiner(config MinerConfig) *Miner {
	return &Miner{Config: config}
}

// Receive credits the block reward without selling. Used by the engine's
// stochastic batch path.
func (m *Miner) Receive() {
	m.ZECBalance += m.Config.BlockReward
}

// SellBatch sells a given ZEC amount through the pool.
func (m *Miner) SellBatch(pool *amm.Pool, amount float64, block uint64) Action {
	if amount <= 0.001 || amount > m.ZECBalance {
		return None
	}
	if out, err := pool.SwapZECForZAI(amount, block); err == nil {
		m.ZECBalance -= amount
		m.ZAIBalance += out
		return Action{Kind: KindMinerSell, Spent: amount, Got: out}
	}
	return None
}

// Act receives the reward and sells per the configured schedule.
func (m *Miner) Act(pool *amm.Pool, block uint64) Action {
	m.ZECBalance += m.Config.BlockReward

	sellTotal := m.Config.BlockReward * m.Config.SellFraction
	ammSell := sellTotal * m.Config.AMMFraction

	if m.Config.SellImmediately {
		if ammSell > 0.001 {
			if out, err := pool.SwapZECForZAI(ammSell, block); err == nil {
				m.ZECBalance -= ammSell
				m.ZAIBalance += out
				return Action{Kind: KindMinerSell, Spent: ammSell, Got: out}
			}
		}
		return None
	}

	m.accumulatedSell += ammSell
	if block >= m.lastBatchBlock+m.Config.BatchInterval && m.accumulatedSell > 0.001 {
		batch := m.accumulatedSell
		if batch > m.ZECBalance {
			batch = m.ZECBalance
		}
		m.accumulatedSell = 0
		m.lastBatchBlock = block
		if out, err := pool.SwapZECForZAI(batch, block); err == nil {
			m.ZECBalance -= batch
			m.ZAIBalance += out
			return Action{Kind: KindMinerSell, Spent: batch, Got: out}
		}
	}
	return None
}
