package agent

import "flatcoin-lab/internal/amm"

// LPConfig parameterizes a threshold liquidity provider.
type LPConfig struct {
	InitialZEC float64
	InitialZAI float64
	// ILThreshold is the impermanent-loss fraction that triggers a full
	// withdrawal.
	ILThreshold float64
	// VolatilityThreshold is kept for parameter sweeps; the baseline LP
	// exits on IL alone.
	VolatilityThreshold float64
}

// DefaultLPConfig returns the baseline LP parameters.
func DefaultLPConfig() LPConfig {
	return LPConfig{
		InitialZEC:          500,
		InitialZAI:          25000,
		ILThreshold:         0.05,
		VolatilityThreshold: 0.10,
	}
}

// LP provides liquidity once and withdraws entirely when impermanent loss
// crosses its threshold.
type LP struct {
	Config LPConfig

	Shares     float64
	ZECBalance float64
	ZAIBalance float64
	Providing  bool
	Owner      string

	entryPrice float64
}

// NewLP creates a liquidity provider.
func NewLP(config LPConfig, owner string) *LP {
	return &LP{Config: config, Owner: owner}
}

// Provide adds the configured liquidity to the pool.
func (l *LP) Provide(pool *amm.Pool) Action {
	shares, err := pool.AddLiquidity(l.Config.InitialZEC, l.Config.InitialZAI, l.Owner, 0)
	if err != nil {
		return None
	}
	l.Shares = shares
	l.entryPrice = pool.SpotPrice()
	l.Providing = true
	return Action{Kind: KindLPAdd, Spent: l.Config.InitialZEC, Got: shares}
}

// Act checks impermanent loss and withdraws past the threshold.
func (l *LP) Act(pool *amm.Pool) Action {
	if !l.Providing || l.Shares <= 0 {
		return None
	}

	il := pool.ImpermanentLoss(l.entryPrice)
	if il < 0 {
		il = -il
	}
	if il <= l.Config.ILThreshold {
		return None
	}

	zec, zai, err := pool.RemoveLiquidity(l.Shares, l.Owner)
	if err != nil {
		return None
	}
	shares := l.Shares
	l.ZECBalance += zec
	l.ZAIBalance += zai
	l.Shares = 0
	l.Providing = false
	return Action{Kind: KindLPRemove, Got: shares, Detail: "full withdrawal on IL"}
}

// ILAwareLPConfig parameterizes a PnL-tracking liquidity provider.
type ILAwareLPConfig struct {
	InitialZEC float64
	InitialZAI float64
	// WithdrawalThreshold on net PnL (fraction of entry value) below
	// which the LP starts unwinding.
	WithdrawalThreshold float64
	// WithdrawalRate is the fraction of the remaining position withdrawn
	// per losing block.
	WithdrawalRate float64
}

// DefaultILAwareLPConfig returns the baseline IL-aware LP parameters.
func DefaultILAwareLPConfig() ILAwareLPConfig {
	return ILAwareLPConfig{
		InitialZEC:          10000,
		InitialZAI:          500000,
		WithdrawalThreshold: -0.02,
		WithdrawalRate:      0.10,
	}
}

// ILAwareLP values its position at the external price (what the off-chain
// market would pay) and gradually unwinds while under water.
type ILAwareLP struct {
	Config ILAwareLPConfig

	Shares       float64
	EntryPrice   float64
	EntryValue   float64
	Providing    bool
	Owner        string
	FeesEarned   float64
	WithdrawnZEC float64
	WithdrawnZAI float64

	lastCumulativeFees float64
}

// NewILAwareLP creates an IL-aware liquidity provider.
func NewILAwareLP(config ILAwareLPConfig, owner string) *ILAwareLP {
	return &ILAwareLP{Config: config, Owner: owner}
}

// Provide adds the configured liquidity to the pool.
func (l *ILAwareLP) Provide(pool *amm.Pool) Action {
	shares, err := pool.AddLiquidity(l.Config.InitialZEC, l.Config.InitialZAI, l.Owner, 0)
	if err != nil {
		return None
	}
	l.Shares = shares
	l.EntryPrice = pool.SpotPrice()
	l.EntryValue = l.Config.InitialZEC*l.EntryPrice + l.Config.InitialZAI
	l.Providing = true
	l.lastCumulativeFees = pool.CumulativeFeesZAI
	return Action{Kind: KindLPAdd, Spent: l.Config.InitialZEC, Got: shares}
}

// Act tracks fee income and net PnL at the external price, withdrawing a
// slice of the position while below the threshold.
func (l *ILAwareLP) Act(pool *amm.Pool, externalPrice float64) Action {
	if !l.Providing || l.Shares <= 0.001 {
		return None
	}

	feeDelta := pool.CumulativeFeesZAI - l.lastCumulativeFees
	if feeDelta > 0 {
		l.FeesEarned += feeDelta * l.Shares / pool.TotalLPShares
	}
	l.lastCumulativeFees = pool.CumulativeFeesZAI

	poolFrac := l.Shares / pool.TotalLPShares
	poolValue := pool.ReserveZEC*poolFrac*externalPrice + pool.ReserveZAI*poolFrac
	netPnL := (poolValue + l.FeesEarned - l.EntryValue) / l.EntryValue

	if netPnL >= l.Config.WithdrawalThreshold {
		return None
	}

	withdraw := l.Shares * l.Config.WithdrawalRate
	if withdraw <= 0.001 {
		return None
	}
	zec, zai, err := pool.RemoveLiquidity(withdraw, l.Owner)
	if err != nil {
		return None
	}
	l.Shares -= withdraw
	l.WithdrawnZEC += zec
	l.WithdrawnZAI += zai
	if l.Shares < 0.001 {
		l.Providing = false
	}
	return Action{Kind: KindLPRemove, Got: withdraw, Detail: "partial withdrawal on negative PnL"}
}
