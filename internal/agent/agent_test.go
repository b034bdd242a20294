package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/amm"
	"flatcoin-lab/internal/cdp"
)

func newPool(t *testing.T) *amm.Pool {
	t.Helper()
	p, err := amm.New(100000, 5000000, 0.003, 0)
	require.NoError(t, err)
	return p
}

func TestArbitrageur_SellsWhenAMMRich(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultArbitrageurConfig()
	cfg.SellLatencyBlocks = 0
	arber := NewArbitrageur(cfg)

	// AMM spot 50, external 45: AMM rich by 11%.
	spotBefore := pool.SpotPrice()
	actions := arber.Act(pool, 45, 1)

	require.Len(t, actions, 1)
	assert.Equal(t, KindSellZEC, actions[0].Kind)
	assert.Less(t, pool.SpotPrice(), spotBefore, "selling must push spot down")
	assert.Less(t, arber.ZECBalance, cfg.InitialZEC)
	assert.Greater(t, arber.ZAIBalance, cfg.InitialZAI)
}

func TestArbitrageur_BuysWhenAMMCheap(t *testing.T) {
	pool := newPool(t)
	arber := NewArbitrageur(DefaultArbitrageurConfig())

	spotBefore := pool.SpotPrice()
	actions := arber.Act(pool, 55, 1)

	require.Len(t, actions, 1)
	assert.Equal(t, KindBuyZEC, actions[0].Kind)
	assert.Greater(t, pool.SpotPrice(), spotBefore)
}

func TestArbitrageur_IdleInsideThreshold(t *testing.T) {
	pool := newPool(t)
	arber := NewArbitrageur(DefaultArbitrageurConfig())

	// 0.2% deviation, below the 0.5% threshold.
	actions := arber.Act(pool, 50.1, 1)
	assert.Empty(t, actions)
}

func TestArbitrageur_SellLatencyQueues(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultArbitrageurConfig()
	cfg.SellLatencyBlocks = 10
	arber := NewArbitrageur(cfg)

	actions := arber.Act(pool, 45, 1)
	require.Len(t, actions, 1)
	assert.Equal(t, KindQueued, actions[0].Kind)

	// Not yet due.
	spotBefore := pool.SpotPrice()
	actions = arber.Act(pool, 50, 5)
	for _, a := range actions {
		assert.NotEqual(t, KindSellZEC, a.Kind)
	}
	assert.Equal(t, spotBefore, pool.SpotPrice())

	// Due at block 11.
	actions = arber.Act(pool, 50, 11)
	found := false
	for _, a := range actions {
		if a.Kind == KindSellZEC {
			found = true
		}
	}
	assert.True(t, found, "queued sell must execute at maturity")
}

func TestArbitrageur_MinProfitFloor(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultArbitrageurConfig()
	cfg.SellLatencyBlocks = 0
	cfg.MinProfit = 1e9
	arber := NewArbitrageur(cfg)

	actions := arber.Act(pool, 45, 1)
	assert.Empty(t, actions, "unprofitable trades are skipped")
}

func TestDemandAgent_BuysBelowPar(t *testing.T) {
	pool := newPool(t)
	d := NewDemandAgent(DefaultDemandAgentConfig())

	// Market 50 vs redemption 52: ZAI cheap, buy more than base rate.
	action := d.Act(pool, 52, 1)
	assert.Equal(t, KindBuyZAI, action.Kind)
	assert.Greater(t, action.Spent, d.Config.BaseRate)
}

func TestDemandAgent_PanicSellsAfterSustainedDepeg(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultDemandAgentConfig()
	cfg.ExitWindowBlocks = 5
	d := NewDemandAgent(cfg)

	// Accumulate some ZAI first at par.
	for b := uint64(1); b <= 3; b++ {
		d.Act(pool, 50, b)
	}
	require.Greater(t, d.ZAIBalance, 0.0)

	// Deviation >5% sustained for the window: redemption 60 vs spot ~50.
	var panicked bool
	for b := uint64(4); b <= 12; b++ {
		if d.Act(pool, 60, b).Kind == KindPanicSellZAI {
			panicked = true
			break
		}
	}
	assert.True(t, panicked)
	assert.True(t, d.Panicked)

	// Panic fires only once.
	for b := uint64(13); b <= 25; b++ {
		assert.NotEqual(t, KindPanicSellZAI, d.Act(pool, 60, b).Kind)
	}
}

func TestMiner_ImmediateSell(t *testing.T) {
	pool := newPool(t)
	m := NewMiner(DefaultMinerConfig())

	action := m.Act(pool, 1)
	assert.Equal(t, KindMinerSell, action.Kind)
	// 1.25 * 0.5 * 0.3 sold, remainder kept.
	assert.InDelta(t, 0.1875, action.Spent, 1e-9)
	assert.InDelta(t, 1.25-0.1875, m.ZECBalance, 1e-9)
	assert.Greater(t, m.ZAIBalance, 0.0)
}

func TestMiner_BatchedSell(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultMinerConfig()
	cfg.SellImmediately = false
	cfg.BatchInterval = 10
	m := NewMiner(cfg)

	for b := uint64(1); b < 10; b++ {
		assert.Equal(t, None, m.Act(pool, b))
	}
	action := m.Act(pool, 10)
	assert.Equal(t, KindMinerSell, action.Kind)
	assert.InDelta(t, 0.1875*10, action.Spent, 1e-9)
}

func TestHolder_TopsUpCollateral(t *testing.T) {
	pool := newPool(t)
	registry := cdp.NewRegistry(cdp.DefaultConfig())
	cfg := DefaultHolderConfig()
	cfg.InitialCollateral = 50
	cfg.InitialDebt = 1000
	h := NewHolder(cfg, "holder_1")

	// TWAP settles at 50 so the open passes: 50*50/1000 = 2.5.
	for b := uint64(1); b <= 60; b++ {
		pool.Observe(b)
	}
	require.NoError(t, h.OpenVault(registry, pool, 60))

	// Crash spot so the TWAP decays below the action threshold over time.
	_, err := pool.SwapZECForZAI(60000, 61)
	require.NoError(t, err)
	for b := uint64(61); b <= 120; b++ {
		pool.Observe(b)
	}

	vault := registry.Get(h.VaultID)
	require.NotNil(t, vault)
	colBefore := vault.CollateralZEC

	action := h.Act(registry, pool, 120)
	assert.Equal(t, KindVaultOp, action.Kind)
	assert.Greater(t, registry.Get(h.VaultID).CollateralZEC, colBefore)
}

func TestHolder_DetectsLiquidatedVault(t *testing.T) {
	pool := newPool(t)
	registry := cdp.NewRegistry(cdp.DefaultConfig())
	h := NewHolder(DefaultHolderConfig(), "holder_1")

	for b := uint64(1); b <= 60; b++ {
		pool.Observe(b)
	}
	require.NoError(t, h.OpenVault(registry, pool, 60))

	registry.Remove(h.VaultID)
	assert.Equal(t, None, h.Act(registry, pool, 61))
	assert.False(t, h.HasVault)
}

func TestLP_WithdrawsOnIL(t *testing.T) {
	pool := newPool(t)
	lp := NewLP(DefaultLPConfig(), "lp_1")

	action := lp.Provide(pool)
	require.Equal(t, KindLPAdd, action.Kind)
	require.True(t, lp.Providing)

	// No price move: stays.
	assert.Equal(t, None, lp.Act(pool))

	// Crash the price far enough for IL > 5%.
	_, err := pool.SwapZECForZAI(120000, 1)
	require.NoError(t, err)

	action = lp.Act(pool)
	assert.Equal(t, KindLPRemove, action.Kind)
	assert.False(t, lp.Providing)
	assert.Greater(t, lp.ZECBalance, 0.0)
	assert.Greater(t, lp.ZAIBalance, 0.0)
}

func TestILAwareLP_GradualWithdrawal(t *testing.T) {
	pool := newPool(t)
	lp := NewILAwareLP(DefaultILAwareLPConfig(), "lp_aware")

	require.Equal(t, KindLPAdd, lp.Provide(pool).Kind)
	sharesBefore := lp.Shares

	// Position healthy at entry price.
	assert.Equal(t, None, lp.Act(pool, 50))

	// External price collapse puts the position deep under water.
	action := lp.Act(pool, 20)
	assert.Equal(t, KindLPRemove, action.Kind)
	assert.InDelta(t, sharesBefore*0.9, lp.Shares, 1e-6)
	assert.True(t, lp.Providing, "partial withdrawal keeps providing")
}

func TestAttacker_DumpHoldRevert(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultAttackerConfig()
	cfg.AttackAtBlock = 10
	cfg.HoldBlocks = 3
	a := NewAttacker(cfg)

	// Idle before the scheduled block.
	assert.Equal(t, None, a.Act(pool, 9))

	spotBefore := pool.SpotPrice()
	action := a.Act(pool, 10)
	assert.Equal(t, KindAttackSwap, action.Kind)
	assert.Equal(t, "sell_zec", action.Detail)
	assert.Less(t, pool.SpotPrice(), spotBefore)

	// Holding.
	assert.Equal(t, None, a.Act(pool, 11))
	assert.Equal(t, None, a.Act(pool, 12))

	// Revert.
	action = a.Act(pool, 13)
	assert.Equal(t, KindAttackSwap, action.Kind)
	assert.Equal(t, "buy_zec", action.Detail)
	assert.True(t, a.Done())

	// Round trip loses fees plus slippage.
	assert.Less(t, a.ZECBalance, cfg.CapitalZEC)
	assert.Equal(t, None, a.Act(pool, 14))
}
