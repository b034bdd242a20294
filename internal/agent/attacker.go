package agent

import "flatcoin-lab/internal/amm"

// AttackerConfig parameterizes a TWAP manipulation attempt.
type AttackerConfig struct {
	// CapitalZEC is dumped in one block to crash spot.
	CapitalZEC float64
	// HoldBlocks before buying back.
	HoldBlocks uint64
	// AttackAtBlock schedules the dump.
	AttackAtBlock uint64
}

// DefaultAttackerConfig returns the baseline attack parameters.
func DefaultAttackerConfig() AttackerConfig {
	return AttackerConfig{
		CapitalZEC:    5000,
		HoldBlocks:    3,
		AttackAtBlock: 100,
	}
}

type attackPhase uint8

const (
	phaseIdle attackPhase = iota
	phaseManipulating
	phaseDone
)

// Attacker dumps ZEC to depress spot, holds while the TWAP absorbs the
// manipulated price, then buys back.
type Attacker struct {
	Config AttackerConfig

	ZECBalance float64
	ZAIBalance float64

	phase         attackPhase
	revertAtBlock uint64
	attackZAI     float64
}

// NewAttacker creates an attacker with its capital in ZEC.
func NewAttacker(config AttackerConfig) *Attacker {
	return &Attacker{Config: config, ZECBalance: config.CapitalZEC}
}

// Done reports whether the attack sequence completed.
func (a *Attacker) Done() bool {
	return a.phase == phaseDone
}

// Act runs the dump / hold / revert state machine.
func (a *Attacker) Act(pool *amm.Pool, block uint64) Action {
	switch a.phase {
	case phaseIdle:
		if block < a.Config.AttackAtBlock {
			return None
		}
		spend := a.ZECBalance
		out, err := pool.SwapZECForZAI(spend, block)
		if err != nil {
			return None
		}
		a.ZECBalance = 0
		a.ZAIBalance += out
		a.attackZAI = out
		a.phase = phaseManipulating
		a.revertAtBlock = block + a.Config.HoldBlocks
		return Action{Kind: KindAttackSwap, Spent: spend, Got: out, Detail: "sell_zec"}

	case phaseManipulating:
		if block < a.revertAtBlock {
			return None
		}
		spend := a.attackZAI
		if spend > a.ZAIBalance {
			spend = a.ZAIBalance
		}
		out, err := pool.SwapZAIForZEC(spend, block)
		if err != nil {
			return None
		}
		a.ZAIBalance -= spend
		a.ZECBalance += out
		a.phase = phaseDone
		return Action{Kind: KindAttackSwap, Spent: spend, Got: out, Detail: "buy_zec"}
	}
	return None
}
