package breaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/amm"
)

func newPool(t *testing.T) *amm.Pool {
	t.Helper()
	p, err := amm.New(100000, 5000000, 0.003, 0)
	require.NoError(t, err)
	return p
}

func TestTwapBreaker_FiresOnDivergence(t *testing.T) {
	pool := newPool(t)
	b := NewTwapBreaker(DefaultTwapConfig())

	// Flat history: no divergence.
	for blk := uint64(1); blk <= 60; blk++ {
		pool.Observe(blk)
	}
	assert.Nil(t, b.Check(pool, 60))

	// Crash spot hard, then observe a few blocks: spot sits far below the
	// long TWAP, which still lags.
	_, err := pool.SwapZECForZAI(40000, 61)
	require.NoError(t, err)
	for blk := uint64(61); blk <= 72; blk++ {
		pool.Observe(blk)
	}

	action := b.Check(pool, 72)
	require.NotNil(t, action)
	assert.Equal(t, ActionPauseMinting, action.Kind)
	assert.True(t, b.FiredThisBlock())
	assert.Equal(t, uint64(1), b.TriggerCount)
	assert.True(t, b.Active(73))
	assert.True(t, b.Active(72+DefaultTwapConfig().PauseBlocks-1))
	assert.False(t, b.Active(72+DefaultTwapConfig().PauseBlocks))

	// While triggered, Check does not re-fire.
	assert.Nil(t, b.Check(pool, 73))
	assert.False(t, b.FiredThisBlock())
}

func TestTwapBreaker_ShortWindowVariant(t *testing.T) {
	// With a short window configured the fast signal is a smoothed TWAP,
	// so a one-block spike does not trip it.
	pool := newPool(t)
	cfg := DefaultTwapConfig()
	cfg.ShortWindow = 12
	b := NewTwapBreaker(cfg)

	for blk := uint64(1); blk <= 60; blk++ {
		pool.Observe(blk)
	}
	_, err := pool.SwapZECForZAI(40000, 61)
	require.NoError(t, err)

	// Immediately after the crash the short TWAP has barely moved.
	assert.Nil(t, b.Check(pool, 61))

	// Once the short window fills with crashed prices it trips.
	for blk := uint64(61); blk <= 72; blk++ {
		pool.Observe(blk)
	}
	assert.NotNil(t, b.Check(pool, 72))
}

func TestCascadeBreaker_CountsWindow(t *testing.T) {
	b := NewCascadeBreaker(DefaultCascadeConfig())

	// 10 liquidations within the window is at the limit, not over it.
	b.RecordLiquidations(10, 10)
	assert.Nil(t, b.Check(11))

	// One more tips it over.
	b.RecordLiquidations(11, 1)
	action := b.Check(12)
	require.NotNil(t, action)
	assert.Equal(t, ActionEmergencyHalt, action.Kind)
	assert.True(t, b.Active(13))
}

func TestCascadeBreaker_OldLiquidationsExpire(t *testing.T) {
	b := NewCascadeBreaker(DefaultCascadeConfig())

	b.RecordLiquidations(10, 11)
	// 100 blocks later those liquidations fell out of the 48-block window.
	assert.Nil(t, b.Check(110))
}

func TestDebtCeiling_ReducesAndRegrows(t *testing.T) {
	pool := newPool(t)
	d := NewDebtCeiling(DefaultCeilingConfig())

	// Spot 50 vs redemption 50: healthy, ceiling already at max.
	assert.Nil(t, d.Update(pool, 50, 0, 0))
	assert.Equal(t, 1000000.0, d.CurrentCeiling)

	// 20% deviation reduces the ceiling by 10%.
	action := d.Update(pool, 62.5, 0, 0)
	require.NotNil(t, action)
	assert.Equal(t, ActionReduceCeiling, action.Kind)
	assert.InDelta(t, 900000, d.CurrentCeiling, 1e-6)
	assert.Equal(t, uint64(1), d.Reductions)

	// Healthy block: regrows slowly.
	require.Nil(t, d.Update(pool, 50, 0, 0))
	assert.InDelta(t, 900000.1, d.CurrentCeiling, 1e-6)
}

func TestDebtCeiling_FloorsAtMin(t *testing.T) {
	pool := newPool(t)
	cfg := DefaultCeilingConfig()
	cfg.MinCeiling = 950000
	d := NewDebtCeiling(cfg)

	require.NotNil(t, d.Update(pool, 62.5, 0, 0))
	assert.Equal(t, 950000.0, d.CurrentCeiling)
}

func TestDebtCeiling_CanMint(t *testing.T) {
	d := NewDebtCeiling(DefaultCeilingConfig())
	assert.True(t, d.CanMint(900000, 100000))
	assert.False(t, d.CanMint(900000, 100001))
}

func TestEngine_GatesAndCounts(t *testing.T) {
	pool := newPool(t)
	e, err := NewEngine(DefaultTwapConfig(), DefaultCascadeConfig(), DefaultCeilingConfig())
	require.NoError(t, err)

	for blk := uint64(1); blk <= 60; blk++ {
		pool.Observe(blk)
	}

	// Nothing fired: all gates open.
	actions := e.CheckAll(pool, 50, 0, 0, 60)
	assert.Empty(t, actions)
	assert.False(t, e.MintingPaused(60))
	assert.False(t, e.Halted(60))
	assert.Zero(t, e.FiresThisBlock())

	// Force a cascade halt.
	e.RecordLiquidations(60, 20)
	actions = e.CheckAll(pool, 50, 0, 0, 61)
	require.Len(t, actions, 1)
	assert.True(t, e.Halted(62))
	assert.Equal(t, uint32(1), e.FiresThisBlock())
}

func TestNewEngine_ValidatesWindows(t *testing.T) {
	twap := DefaultTwapConfig()
	twap.ShortWindow = 48
	twap.LongWindow = 12
	_, err := NewEngine(twap, DefaultCascadeConfig(), DefaultCeilingConfig())
	assert.Error(t, err)

	ceiling := DefaultCeilingConfig()
	ceiling.InitialCeiling = 1
	_, err = NewEngine(DefaultTwapConfig(), DefaultCascadeConfig(), ceiling)
	assert.Error(t, err)
}
