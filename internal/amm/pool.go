// Package amm implements a two-reserve constant-product pool with swap fees,
// LP shares, and a block-indexed cumulative-price accumulator for TWAP queries.
package amm

import (
	"errors"
	"fmt"
	"math"
)

// Pool errors.
var (
	ErrNonPositiveInput   = errors.New("input must be positive")
	ErrInsufficientOutput = errors.New("insufficient output")
	ErrInsufficientShares = errors.New("insufficient LP shares")
	ErrRatioMismatch      = errors.New("liquidity amounts do not match pool ratio")
	ErrDegenerateReserves = errors.New("pool reserves are degenerate")
)

// Observation is one stored sample of the cumulative price accumulator.
type Observation struct {
	Block           uint64
	CumulativePrice float64
	SpotPrice       float64
}

// Pool is a constant-product AMM holding ZEC (x) against ZAI (y).
// All mutations recompute k; swap fees stay in the pool so k is
// monotonically non-decreasing across swaps.
type Pool struct {
	ReserveZEC    float64
	ReserveZAI    float64
	K             float64
	SwapFee       float64
	TotalLPShares float64

	// Per-owner LP share accounting.
	lpShares map[string]float64

	cumulativePrice float64
	observations    []Observation
	lastUpdateBlock uint64
	maxWindow       uint64

	// CumulativeFeesZAI is total swap fees collected, in ZAI-equivalent.
	CumulativeFeesZAI float64
}

const genesisOwner = "genesis"

// dust below which an owner's share entry is dropped
const shareDust = 1e-15

// New creates a pool with initial reserves. Genesis LP shares are
// sqrt(x*y), credited to the "genesis" owner. maxWindow bounds the
// observation history retained for TWAP queries.
func New(initialZEC, initialZAI, swapFee float64, maxWindow uint64) (*Pool, error) {
	if initialZEC <= 0 || initialZAI <= 0 {
		return nil, ErrNonPositiveInput
	}
	if swapFee < 0 || swapFee >= 1 {
		return nil, fmt.Errorf("swap fee %v outside [0,1): %w", swapFee, ErrNonPositiveInput)
	}

	shares := math.Sqrt(initialZEC * initialZAI)
	p := &Pool{
		ReserveZEC:    initialZEC,
		ReserveZAI:    initialZAI,
		K:             initialZEC * initialZAI,
		SwapFee:       swapFee,
		TotalLPShares: shares,
		lpShares:      map[string]float64{genesisOwner: shares},
		maxWindow:     maxWindow,
	}
	p.observations = []Observation{{Block: 0, CumulativePrice: 0, SpotPrice: p.SpotPrice()}}
	return p, nil
}

// SpotPrice returns the instantaneous ZAI-per-ZEC price y/x.
func (p *Pool) SpotPrice() float64 {
	return p.ReserveZAI / p.ReserveZEC
}

// Observe advances the cumulative price accumulator to block b using the
// spot price that held since the last observation, and records a sample.
// Idempotent within a block. The engine calls this once per block before
// any swap so the TWAP reflects the integral over whole blocks.
func (p *Pool) Observe(block uint64) {
	if block <= p.lastUpdateBlock {
		return
	}
	elapsed := block - p.lastUpdateBlock
	spot := p.SpotPrice()
	p.cumulativePrice += spot * float64(elapsed)

	p.observations = append(p.observations, Observation{
		Block:           block,
		CumulativePrice: p.cumulativePrice,
		SpotPrice:       spot,
	})
	p.lastUpdateBlock = block
	p.pruneObservations(block)
}

// pruneObservations drops samples older than the maximum TWAP window,
// always keeping at least one sample at or before the window start.
func (p *Pool) pruneObservations(block uint64) {
	if p.maxWindow == 0 || block <= p.maxWindow {
		return
	}
	cutoff := block - p.maxWindow
	// Keep the last sample at or before cutoff so window queries can bracket.
	idx := 0
	for i, obs := range p.observations {
		if obs.Block <= cutoff {
			idx = i
		} else {
			break
		}
	}
	if idx > 0 {
		p.observations = append(p.observations[:0], p.observations[idx:]...)
	}
}

// TWAP returns the time-weighted average price over the trailing window.
// Falls back to the current spot price when the bracket collapses.
func (p *Pool) TWAP(windowBlocks uint64) float64 {
	if len(p.observations) == 0 {
		return p.SpotPrice()
	}

	current := p.observations[len(p.observations)-1]
	var target uint64
	if current.Block > windowBlocks {
		target = current.Block - windowBlocks
	}

	// Latest observation at or before the target block.
	start := p.observations[0]
	for i := len(p.observations) - 1; i >= 0; i-- {
		if p.observations[i].Block <= target {
			start = p.observations[i]
			break
		}
	}

	blockDiff := current.Block - start.Block
	if blockDiff == 0 {
		return current.SpotPrice
	}
	return (current.CumulativePrice - start.CumulativePrice) / float64(blockDiff)
}

// SwapZECForZAI sells zecIn into the pool and returns the ZAI output.
// The fee-exclusive input moves the curve; the full input is committed so
// the fee accrues to reserves.
func (p *Pool) SwapZECForZAI(zecIn float64, block uint64) (float64, error) {
	if zecIn <= 0 {
		return 0, ErrNonPositiveInput
	}

	// Record price before the swap mutates reserves.
	p.Observe(block)

	// Fee tracked in ZAI-equivalent at the pre-swap spot.
	p.CumulativeFeesZAI += zecIn * p.SwapFee * p.SpotPrice()

	effective := zecIn * (1 - p.SwapFee)
	newZEC := p.ReserveZEC + effective
	newZAI := p.K / newZEC
	zaiOut := p.ReserveZAI - newZAI

	if zaiOut <= 0 {
		return 0, ErrInsufficientOutput
	}
	if p.ReserveZAI-zaiOut <= 0 {
		return 0, ErrInsufficientOutput
	}

	p.ReserveZEC += zecIn
	p.ReserveZAI -= zaiOut
	p.K = p.ReserveZEC * p.ReserveZAI

	return zaiOut, nil
}

// SwapZAIForZEC sells zaiIn into the pool and returns the ZEC output.
func (p *Pool) SwapZAIForZEC(zaiIn float64, block uint64) (float64, error) {
	if zaiIn <= 0 {
		return 0, ErrNonPositiveInput
	}

	p.Observe(block)

	p.CumulativeFeesZAI += zaiIn * p.SwapFee

	effective := zaiIn * (1 - p.SwapFee)
	newZAI := p.ReserveZAI + effective
	newZEC := p.K / newZAI
	zecOut := p.ReserveZEC - newZEC

	if zecOut <= 0 {
		return 0, ErrInsufficientOutput
	}
	if p.ReserveZEC-zecOut <= 0 {
		return 0, ErrInsufficientOutput
	}

	p.ReserveZAI += zaiIn
	p.ReserveZEC -= zecOut
	p.K = p.ReserveZEC * p.ReserveZAI

	return zecOut, nil
}

// QuoteZECForZAI returns the ZAI output of SwapZECForZAI without executing.
func (p *Pool) QuoteZECForZAI(zecIn float64) float64 {
	effective := zecIn * (1 - p.SwapFee)
	newZEC := p.ReserveZEC + effective
	newZAI := p.K / newZEC
	return math.Max(p.ReserveZAI-newZAI, 0)
}

// QuoteZAIForZEC returns the ZEC output of SwapZAIForZEC without executing.
func (p *Pool) QuoteZAIForZEC(zaiIn float64) float64 {
	effective := zaiIn * (1 - p.SwapFee)
	newZAI := p.ReserveZAI + effective
	newZEC := p.K / newZAI
	return math.Max(p.ReserveZEC-newZEC, 0)
}

// AddLiquidity deposits both assets and mints shares proportional to the
// smaller contribution. ratioTolerance bounds the allowed deviation of
// zec/zai from the pool ratio (fraction; 0 disables the check).
func (p *Pool) AddLiquidity(zec, zai float64, owner string, ratioTolerance float64) (float64, error) {
	if zec <= 0 || zai <= 0 {
		return 0, ErrNonPositiveInput
	}

	shareZEC := zec / p.ReserveZEC * p.TotalLPShares
	shareZAI := zai / p.ReserveZAI * p.TotalLPShares

	if ratioTolerance > 0 {
		hi := math.Max(shareZEC, shareZAI)
		lo := math.Min(shareZEC, shareZAI)
		if hi > 0 && (hi-lo)/hi > ratioTolerance {
			return 0, ErrRatioMismatch
		}
	}

	shares := math.Min(shareZEC, shareZAI)
	if p.TotalLPShares == 0 {
		shares = math.Sqrt(zec * zai)
	}

	p.ReserveZEC += zec
	p.ReserveZAI += zai
	p.K = p.ReserveZEC * p.ReserveZAI
	p.TotalLPShares += shares
	p.lpShares[owner] += shares

	return shares, nil
}

// RemoveLiquidity burns shares and withdraws the proportional reserves.
func (p *Pool) RemoveLiquidity(shares float64, owner string) (zecOut, zaiOut float64, err error) {
	if shares <= 0 {
		return 0, 0, ErrNonPositiveInput
	}
	owned := p.lpShares[owner]
	if shares > owned {
		return 0, 0, fmt.Errorf("have %v, requested %v: %w", owned, shares, ErrInsufficientShares)
	}

	fraction := shares / p.TotalLPShares
	zecOut = p.ReserveZEC * fraction
	zaiOut = p.ReserveZAI * fraction

	if p.ReserveZEC-zecOut <= 0 || p.ReserveZAI-zaiOut <= 0 {
		return 0, 0, ErrDegenerateReserves
	}

	p.ReserveZEC -= zecOut
	p.ReserveZAI -= zaiOut
	p.K = p.ReserveZEC * p.ReserveZAI
	p.TotalLPShares -= shares

	p.lpShares[owner] -= shares
	if p.lpShares[owner] < shareDust {
		delete(p.lpShares, owner)
	}

	return zecOut, zaiOut, nil
}

// InjectPenalty adds ZAI to reserves without minting shares, raising k.
// Used by the liquidation engine to route penalty value to LPs.
func (p *Pool) InjectPenalty(zai float64) {
	if zai <= 0 {
		return
	}
	p.ReserveZAI += zai
	p.K = p.ReserveZEC * p.ReserveZAI
	p.CumulativeFeesZAI += zai
}

// SharesOf returns the LP shares held by owner.
func (p *Pool) SharesOf(owner string) float64 {
	return p.lpShares[owner]
}

// ImpermanentLoss returns the IL fraction for a position entered at
// entryPrice: 2*sqrt(r)/(1+r) - 1 where r = spot/entry. Always <= 0.
func (p *Pool) ImpermanentLoss(entryPrice float64) float64 {
	r := p.SpotPrice() / entryPrice
	return 2*math.Sqrt(r)/(1+r) - 1
}

// LastObservedBlock returns the block of the newest TWAP sample.
func (p *Pool) LastObservedBlock() uint64 {
	return p.lastUpdateBlock
}
