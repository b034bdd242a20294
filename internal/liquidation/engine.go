// Package liquidation selects under-collateralized vaults, realizes their
// collateral through the AMM, settles debt, and distributes penalties.
package liquidation

import (
	"errors"
	"fmt"
	"sort"

	"flatcoin-lab/internal/amm"
	"flatcoin-lab/internal/cdp"
)

// Engine errors.
var (
	ErrVelocityLimit = errors.New("liquidation velocity limit reached")
	ErrNotEligible   = errors.New("vault is not liquidatable")
	ErrNoDebt        = errors.New("vault has no debt to liquidate")
)

// Mode selects the liquidation strategy for a run. Closed set.
type Mode string

const (
	// ModeTransparent values collateral at TWAP with zero slippage and
	// bypasses the AMM physically.
	ModeTransparent Mode = "transparent"
	// ModeCascadeAMM sells seized collateral through the AMM and re-scans
	// at spot after each liquidation (death-spiral feedback).
	ModeCascadeAMM Mode = "cascade_amm"
	// ModeChallengeResponse is AMM-cascading with an elevated keeper share.
	ModeChallengeResponse Mode = "challenge_response"
	// ModeSelf is owner-initiated with a reduced penalty.
	ModeSelf Mode = "self"
	// ModeOracle uses the external price for eligibility but sells through
	// the AMM, so the cascade builds across blocks.
	ModeOracle Mode = "oracle"
	// ModeGraduated partially liquidates warning-zone vaults.
	ModeGraduated Mode = "graduated"
	// ModeZombieDetector only observes: in an oracle-free configuration
	// spot and TWAP derive from the same pool, so the detector is inert.
	ModeZombieDetector Mode = "zombie_detector"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeTransparent, ModeCascadeAMM, ModeChallengeResponse, ModeSelf,
		ModeOracle, ModeGraduated, ModeZombieDetector:
		return true
	}
	return false
}

// Config holds liquidation parameters, immutable for a run.
type Config struct {
	// MaxPerBlock caps liquidations per block; overflow carries to the
	// next block.
	MaxPerBlock uint32
	// KeeperRewardPct is the keeper's fraction of realized penalty.
	KeeperRewardPct float64
	// SelfPenaltyPct scales the penalty for self-liquidation (0 = free).
	SelfPenaltyPct float64
	// PenaltyToLPsPct routes this fraction of the non-keeper penalty into
	// AMM reserves.
	PenaltyToLPsPct float64
	// Graduated enables partial liquidation of warning-zone vaults.
	Graduated bool
	// GraduatedPctPerBlock is the collateral fraction seized per block.
	GraduatedPctPerBlock float64
	// GraduatedCRFloor: vaults below this TWAP ratio get full liquidation
	// instead of graduated treatment.
	GraduatedCRFloor float64
	// ZombieGapThreshold is the minimum TWAP-vs-spot CR gap for a vault
	// to count as a zombie.
	ZombieGapThreshold float64
}

// DefaultConfig returns the baseline liquidation parameters.
func DefaultConfig() Config {
	return Config{
		MaxPerBlock:          5,
		KeeperRewardPct:      0.50,
		SelfPenaltyPct:       0,
		PenaltyToLPsPct:      0,
		Graduated:            false,
		GraduatedPctPerBlock: 0.10,
		GraduatedCRFloor:     1.5,
		ZombieGapThreshold:   0.5,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxPerBlock == 0 {
		return errors.New("max liquidations per block must be positive")
	}
	if c.KeeperRewardPct < 0 || c.KeeperRewardPct > 1 {
		return fmt.Errorf("keeper reward %v outside [0,1]", c.KeeperRewardPct)
	}
	if c.PenaltyToLPsPct < 0 || c.PenaltyToLPsPct > 1 {
		return fmt.Errorf("penalty-to-LPs %v outside [0,1]", c.PenaltyToLPsPct)
	}
	if c.GraduatedPctPerBlock <= 0 || c.GraduatedPctPerBlock > 1 {
		return fmt.Errorf("graduated seizure %v outside (0,1]", c.GraduatedPctPerBlock)
	}
	return nil
}

// Result records one executed liquidation.
type Result struct {
	VaultID          uint64
	Owner            string
	Mode             Mode
	CollateralSeized float64
	DebtToCover      float64
	ProceedsZAI      float64
	Penalty          float64
	KeeperReward     float64
	SurplusToOwner   float64
	BadDebt          float64
	Block            uint64
}

// ZombieVault is an observation of a vault that looks safe by TWAP but is
// under-collateralized at spot.
type ZombieVault struct {
	VaultID   uint64
	TwapRatio float64
	SpotRatio float64
	Gap       float64
}

// Engine executes liquidations and accumulates run-level tallies.
type Engine struct {
	Config Config

	TotalBadDebt    float64
	TotalPenalties  float64 // treasury share after keeper and LP routing
	TotalKeeperPaid float64
	History         []Result

	liquidationsThisBlock uint32
	currentBlock          uint64
}

// NewEngine creates a liquidation engine.
func NewEngine(config Config) *Engine {
	return &Engine{Config: config}
}

// advanceBlock resets the per-block counter when the block moves forward.
func (e *Engine) advanceBlock(block uint64) {
	if block > e.currentBlock {
		e.currentBlock = block
		e.liquidationsThisBlock = 0
	}
}

func (e *Engine) checkVelocity() error {
	if e.liquidationsThisBlock >= e.Config.MaxPerBlock {
		return fmt.Errorf("%d in block %d: %w", e.liquidationsThisBlock, e.currentBlock, ErrVelocityLimit)
	}
	return nil
}

// LiquidationsThisBlock returns the count executed in the current block.
func (e *Engine) LiquidationsThisBlock(block uint64) uint32 {
	if block != e.currentBlock {
		return 0
	}
	return e.liquidationsThisBlock
}

// eligible holds a scan hit sorted by ascending ratio: the most
// under-collateralized vault is processed first.
type eligible struct {
	id    uint64
	ratio float64
}

func sortEligible(hits []eligible) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].ratio != hits[j].ratio {
			return hits[i].ratio < hits[j].ratio
		}
		return hits[i].id < hits[j].id
	})
}

// ScanAtPrice returns vault IDs under-collateralized at the given price,
// most distressed first.
func (e *Engine) ScanAtPrice(registry *cdp.Registry, price float64) []uint64 {
	var hits []eligible
	registry.Each(func(v *cdp.Vault) {
		if v.DebtZAI <= 0 {
			return
		}
		r := v.CollateralRatio(price)
		if r < registry.Config.MinRatio {
			hits = append(hits, eligible{id: v.ID, ratio: r})
		}
	})
	sortEligible(hits)
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// ScanTwap returns vaults liquidatable at the pool TWAP.
func (e *Engine) ScanTwap(registry *cdp.Registry, pool *amm.Pool) []uint64 {
	return e.ScanAtPrice(registry, pool.TWAP(registry.Config.TwapWindow))
}

// executeFull seizes all collateral, realizes it, settles debt, and
// distributes the penalty. Transparent mode computes equivalent proceeds
// from TWAP with zero slippage; every other mode sells through the pool.
func (e *Engine) executeFull(vaultID uint64, mode Mode, penaltyFrac, keeperFrac float64,
	registry *cdp.Registry, pool *amm.Pool, block uint64) (Result, error) {

	e.advanceBlock(block)
	if err := e.checkVelocity(); err != nil {
		return Result{}, err
	}

	if err := registry.Accrue(vaultID, block); err != nil {
		return Result{}, err
	}

	v := registry.Get(vaultID)
	if v == nil {
		return Result{}, fmt.Errorf("vault %d: %w", vaultID, cdp.ErrVaultNotFound)
	}
	if v.DebtZAI == 0 {
		return Result{}, ErrNoDebt
	}

	seized := v.CollateralZEC
	debt := v.DebtZAI
	owner := v.Owner

	registry.Remove(vaultID)

	// Realize collateral.
	var proceeds float64
	if mode == ModeTransparent {
		proceeds = seized * pool.TWAP(registry.Config.TwapWindow)
	} else {
		out, err := pool.SwapZECForZAI(seized, block)
		if err == nil {
			proceeds = out
		}
		// A failed swap leaves proceeds at zero: all debt becomes bad debt.
	}

	penaltyObligation := debt * penaltyFrac
	obligation := debt + penaltyObligation

	var badDebt, surplus, penalty float64
	switch {
	case proceeds >= obligation:
		penalty = penaltyObligation
		surplus = proceeds - obligation
	case proceeds >= debt:
		penalty = proceeds - debt
	default:
		badDebt = debt - proceeds
	}

	keeperReward := penalty * keeperFrac
	lpShare := (penalty - keeperReward) * e.Config.PenaltyToLPsPct
	if lpShare > 0 {
		pool.InjectPenalty(lpShare)
	}

	e.TotalBadDebt += badDebt
	e.TotalPenalties += penalty - keeperReward - lpShare
	e.TotalKeeperPaid += keeperReward
	e.liquidationsThisBlock++

	res := Result{
		VaultID:          vaultID,
		Owner:            owner,
		Mode:             mode,
		CollateralSeized: seized,
		DebtToCover:      debt,
		ProceedsZAI:      proceeds,
		Penalty:          penalty,
		KeeperReward:     keeperReward,
		SurplusToOwner:   surplus,
		BadDebt:          badDebt,
		Block:            block,
	}
	e.History = append(e.History, res)
	return res, nil
}

// RunTransparent scans at TWAP and fully liquidates every eligible vault
// up to the per-block cap.
func (e *Engine) RunTransparent(registry *cdp.Registry, pool *amm.Pool, block uint64) []Result {
	ids := e.ScanTwap(registry, pool)
	var results []Result
	for _, id := range ids {
		res, err := e.executeFull(id, ModeTransparent, registry.Config.LiquidationPenalty, 0, registry, pool, block)
		if err != nil {
			break // velocity limit; remainder carries to the next block
		}
		results = append(results, res)
	}
	return results
}

// RunCascade liquidates at spot eligibility, re-scanning after each pass
// because the AMM sell depresses spot and may expose more vaults.
func (e *Engine) RunCascade(registry *cdp.Registry, pool *amm.Pool, block uint64) []Result {
	var results []Result
	for {
		ids := e.ScanAtPrice(registry, pool.SpotPrice())
		if len(ids) == 0 {
			return results
		}
		liquidated := false
		for _, id := range ids {
			res, err := e.executeFull(id, ModeCascadeAMM, registry.Config.LiquidationPenalty, 0, registry, pool, block)
			if err != nil {
				return results
			}
			results = append(results, res)
			liquidated = true
		}
		if !liquidated {
			return results
		}
	}
}

// RunOracle liquidates vaults eligible at the external price, selling
// through the AMM. No intra-block re-scan: the oracle price is fixed per
// block, so the cascade develops across blocks as spot deteriorates.
func (e *Engine) RunOracle(registry *cdp.Registry, pool *amm.Pool, block uint64, oraclePrice float64) []Result {
	ids := e.ScanAtPrice(registry, oraclePrice)
	var results []Result
	for _, id := range ids {
		res, err := e.executeFull(id, ModeOracle, registry.Config.LiquidationPenalty, 0, registry, pool, block)
		if err != nil {
			break
		}
		results = append(results, res)
	}
	return results
}

// SelfLiquidate is owner-initiated, allowed even above the minimum ratio,
// with the penalty scaled by SelfPenaltyPct.
func (e *Engine) SelfLiquidate(vaultID uint64, registry *cdp.Registry, pool *amm.Pool, block uint64) (Result, error) {
	penaltyFrac := registry.Config.LiquidationPenalty * e.Config.SelfPenaltyPct
	return e.executeFull(vaultID, ModeSelf, penaltyFrac, 0, registry, pool, block)
}

// ChallengeLiquidate is keeper-initiated; the keeper takes
// KeeperRewardPct of the realized penalty. The vault must be eligible at
// TWAP.
func (e *Engine) ChallengeLiquidate(vaultID uint64, registry *cdp.Registry, pool *amm.Pool, block uint64) (Result, error) {
	if !registry.IsLiquidatable(vaultID, pool) {
		return Result{}, fmt.Errorf("vault %d: %w", vaultID, ErrNotEligible)
	}
	return e.executeFull(vaultID, ModeChallengeResponse, registry.Config.LiquidationPenalty, e.Config.KeeperRewardPct, registry, pool, block)
}

// ScanGraduated returns vaults in the warning zone
// [GraduatedCRFloor, MinRatio) at TWAP, most distressed first.
func (e *Engine) ScanGraduated(registry *cdp.Registry, pool *amm.Pool) []uint64 {
	twap := pool.TWAP(registry.Config.TwapWindow)
	var hits []eligible
	registry.Each(func(v *cdp.Vault) {
		if v.DebtZAI <= 0 {
			return
		}
		r := v.CollateralRatio(twap)
		if r >= e.Config.GraduatedCRFloor && r < registry.Config.MinRatio {
			hits = append(hits, eligible{id: v.ID, ratio: r})
		}
	})
	sortEligible(hits)
	ids := make([]uint64, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids
}

// executeGraduated seizes a fraction of collateral, sells it, and
// back-solves the proceeds split so the penalty is physically backed:
// debtCovered = proceeds/(1+penalty), penalty = proceeds - debtCovered.
func (e *Engine) executeGraduated(vaultID uint64, registry *cdp.Registry, pool *amm.Pool, block uint64) (Result, error) {
	e.advanceBlock(block)
	if err := e.checkVelocity(); err != nil {
		return Result{}, err
	}

	if err := registry.Accrue(vaultID, block); err != nil {
		return Result{}, err
	}

	v := registry.Get(vaultID)
	if v == nil {
		return Result{}, fmt.Errorf("vault %d: %w", vaultID, cdp.ErrVaultNotFound)
	}
	if v.DebtZAI <= 0 {
		return Result{}, ErrNoDebt
	}

	seized := v.CollateralZEC * e.Config.GraduatedPctPerBlock
	owner := v.Owner

	var proceeds float64
	if out, err := pool.SwapZECForZAI(seized, block); err == nil {
		proceeds = out
	}

	penaltyFrac := registry.Config.LiquidationPenalty
	debtCovered := proceeds / (1 + penaltyFrac)
	penalty := proceeds - debtCovered

	debtReduction := debtCovered
	if debtReduction > v.DebtZAI {
		debtReduction = v.DebtZAI
	}

	lpShare := penalty * e.Config.PenaltyToLPsPct
	if lpShare > 0 {
		pool.InjectPenalty(lpShare)
	}

	registry.ReduceDebtAndCollateral(vaultID, debtReduction, seized)

	// Remove the vault once its debt falls to or below the floor.
	if v := registry.Get(vaultID); v != nil && v.DebtZAI <= registry.Config.DebtFloor {
		registry.Remove(vaultID)
	}

	e.TotalPenalties += penalty - lpShare
	e.liquidationsThisBlock++

	res := Result{
		VaultID:          vaultID,
		Owner:            owner,
		Mode:             ModeGraduated,
		CollateralSeized: seized,
		DebtToCover:      debtReduction,
		ProceedsZAI:      proceeds,
		Penalty:          penalty,
		Block:            block,
	}
	e.History = append(e.History, res)
	return res, nil
}

// RunGraduated partially liquidates every warning-zone vault, ascending
// TWAP ratio, within the per-block cap. Full liquidations run first; the
// engine calls this afterwards so graduated seizures never preempt them.
func (e *Engine) RunGraduated(registry *cdp.Registry, pool *amm.Pool, block uint64) []Result {
	if !e.Config.Graduated {
		return nil
	}
	ids := e.ScanGraduated(registry, pool)
	var results []Result
	for _, id := range ids {
		res, err := e.executeGraduated(id, registry, pool, block)
		if err != nil {
			break
		}
		results = append(results, res)
	}
	return results
}

// ScanZombies returns vaults safe at TWAP but unsafe at spot with a CR
// gap above the threshold. Under oracle-free rules the detector only
// observes; it cannot act, because spot and TWAP come from the same pool.
func (e *Engine) ScanZombies(registry *cdp.Registry, pool *amm.Pool) []ZombieVault {
	twap := pool.TWAP(registry.Config.TwapWindow)
	spot := pool.SpotPrice()
	minRatio := registry.Config.MinRatio

	var zombies []ZombieVault
	registry.Each(func(v *cdp.Vault) {
		if v.DebtZAI <= 0 {
			return
		}
		tr := v.CollateralRatio(twap)
		sr := v.CollateralRatio(spot)
		if tr >= minRatio && sr < minRatio && tr-sr > e.Config.ZombieGapThreshold {
			zombies = append(zombies, ZombieVault{
				VaultID:   v.ID,
				TwapRatio: tr,
				SpotRatio: sr,
				Gap:       tr - sr,
			})
		}
	})
	return zombies
}
