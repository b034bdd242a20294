package cdp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedPrice satisfies PriceSource with a constant valuation.
type fixedPrice float64

func (p fixedPrice) TWAP(uint64) float64 { return float64(p) }
func (p fixedPrice) SpotPrice() float64  { return float64(p) }

func TestOpen_Valid(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	id, err := r.Open("alice", 100, 2000, 10, fixedPrice(50))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	v := r.Get(id)
	require.NotNil(t, v)
	assert.Equal(t, "alice", v.Owner)
	assert.Equal(t, 100.0, v.CollateralZEC)
	assert.Equal(t, 2000.0, v.DebtZAI)
	assert.Equal(t, uint64(10), v.LastFeeBlock)
	assert.Equal(t, 2000.0, r.TotalDebt)
	assert.Equal(t, 100.0, r.TotalCollateral)
}

func TestOpen_Rejections(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	_, err := r.Open("a", 0, 1000, 1, fixedPrice(50))
	assert.ErrorIs(t, err, ErrZeroCollateral)

	_, err = r.Open("a", 100, -1, 1, fixedPrice(50))
	assert.ErrorIs(t, err, ErrNegativeDebt)

	_, err = r.Open("a", 100, 50, 1, fixedPrice(50))
	assert.ErrorIs(t, err, ErrBelowDebtFloor)

	// 10 ZEC * $50 = $500 against 400 debt => ratio 1.25 < 1.5.
	_, err = r.Open("a", 10, 400, 1, fixedPrice(50))
	assert.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestOpen_ZeroDebtAllowed(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 10, 0, 1, fixedPrice(50))
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.Get(id).CollateralRatio(50), 1))
}

func TestAccrue_CompoundsPerBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StabilityFeeRate = 0.02
	r := NewRegistry(cfg)

	id, err := r.Open("a", 100, 1000, 0, fixedPrice(50))
	require.NoError(t, err)

	require.NoError(t, r.Accrue(id, BlocksPerYear))
	// One year of 2% compounded per block is ~e^0.02 - 1.
	assert.InDelta(t, 1000*math.Exp(0.02), r.Get(id).DebtZAI, 0.01)
	assert.InDelta(t, r.Get(id).DebtZAI, r.TotalDebt, 1e-9)
}

func TestAccrue_ZeroBlocksNoChange(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 1000, 5, fixedPrice(50))
	require.NoError(t, err)

	before := r.Get(id).DebtZAI
	require.NoError(t, r.Accrue(id, 5))
	assert.Equal(t, before, r.Get(id).DebtZAI)
}

func TestAccrue_Monotone(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 1000, 0, fixedPrice(50))
	require.NoError(t, err)

	prev := r.Get(id).DebtZAI
	for b := uint64(100); b <= 1000; b += 100 {
		require.NoError(t, r.Accrue(id, b))
		assert.GreaterOrEqual(t, r.Get(id).DebtZAI, prev)
		prev = r.Get(id).DebtZAI
	}
}

func TestWithdraw_RatioCheck(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 2000, 1, fixedPrice(50))
	require.NoError(t, err)

	// Withdrawing 50 leaves 50*50/2000 = 1.25 < 1.5.
	err = r.Withdraw(id, 50, 2, fixedPrice(50))
	assert.ErrorIs(t, err, ErrInsufficientCollateral)

	// Withdrawing 10 leaves 90*50/2000 = 2.25, fine.
	require.NoError(t, r.Withdraw(id, 10, 2, fixedPrice(50)))
	assert.Equal(t, 90.0, r.Get(id).CollateralZEC)

	err = r.Withdraw(id, 1000, 3, fixedPrice(50))
	assert.ErrorIs(t, err, ErrWithdrawExceedsBalance)
}

func TestBorrow_FloorAndRatio(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 0, 1, fixedPrice(50))
	require.NoError(t, err)

	err = r.Borrow(id, 50, 2, fixedPrice(50))
	assert.ErrorIs(t, err, ErrBelowDebtFloor)

	// 100 * 50 / 4000 = 1.25 < 1.5.
	err = r.Borrow(id, 4000, 2, fixedPrice(50))
	assert.ErrorIs(t, err, ErrInsufficientCollateral)

	require.NoError(t, r.Borrow(id, 3000, 2, fixedPrice(50)))
	assert.Equal(t, 3000.0, r.Get(id).DebtZAI)
	assert.Equal(t, 3000.0, r.TotalDebt)
}

func TestRepay_FloorRules(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 1000, 1, fixedPrice(50))
	require.NoError(t, err)

	// Partial repay leaving 50 < floor 100 refused.
	err = r.Repay(id, 950, 1)
	assert.ErrorIs(t, err, ErrBelowDebtFloor)

	// Repay more than owed refused.
	err = r.Repay(id, 2000, 1)
	assert.ErrorIs(t, err, ErrRepayExceedsDebt)

	// Full repay to zero allowed.
	require.NoError(t, r.Repay(id, 1000, 1))
	assert.Equal(t, 0.0, r.Get(id).DebtZAI)
	assert.Equal(t, 0.0, r.TotalDebt)
}

func TestIsLiquidatable(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 3000, 1, fixedPrice(50))
	require.NoError(t, err)

	// ratio 100*50/3000 = 1.67 at $50, safe.
	assert.False(t, r.IsLiquidatable(id, fixedPrice(50)))

	// At $40: 100*40/3000 = 1.33 < 1.5.
	assert.True(t, r.IsLiquidatable(id, fixedPrice(40)))

	// Zero-debt vault is never liquidatable.
	id2, err := r.Open("b", 10, 0, 1, fixedPrice(50))
	require.NoError(t, err)
	assert.False(t, r.IsLiquidatable(id2, fixedPrice(1)))
}

func TestClose_ReturnsCollateralAndDebt(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	id, err := r.Open("a", 100, 1000, 1, fixedPrice(50))
	require.NoError(t, err)

	col, debt, err := r.Close(id, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, col)
	assert.Equal(t, 1000.0, debt)
	assert.Nil(t, r.Get(id))
	assert.Equal(t, 0.0, r.TotalDebt)
	assert.Equal(t, 0.0, r.TotalCollateral)
}

func TestSortedIDs_Deterministic(t *testing.T) {
	r := NewRegistry(DefaultConfig())
	for i := 0; i < 20; i++ {
		_, err := r.Open("a", 100, 2000, 1, fixedPrice(50))
		require.NoError(t, err)
	}

	ids := r.SortedIDs()
	require.Len(t, ids, 20)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MinRatio = 0.9
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.TwapWindow = 0
	assert.Error(t, bad.Validate())
}
