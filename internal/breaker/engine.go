package breaker

import (
	"errors"
	"fmt"

	"flatcoin-lab/internal/amm"
)

// ErrBreakerTripped is returned to agents whose operation was refused
// because a breaker fired this block. Counted in metrics, never fatal.
var ErrBreakerTripped = errors.New("operation refused: circuit breaker active")

// ActionKind classifies what a tripped breaker does.
type ActionKind string

const (
	ActionPauseMinting  ActionKind = "pause_minting"
	ActionEmergencyHalt ActionKind = "emergency_halt"
	ActionReduceCeiling ActionKind = "reduce_ceiling"
)

// Action describes one breaker trip in a block.
type Action struct {
	Kind   ActionKind
	Blocks uint64  // pause/halt duration, where applicable
	Value  float64 // new ceiling, where applicable
	Reason string
}

// Engine aggregates the three breakers and the gates the scenario engine
// consults before dispatching agent operations.
type Engine struct {
	Twap    *TwapBreaker
	Cascade *CascadeBreaker
	Ceiling *DebtCeiling

	MintingPausedUntil uint64
	HaltedUntil        uint64
}

// NewEngine creates the combined breaker engine.
func NewEngine(twap TwapConfig, cascade CascadeConfig, ceiling CeilingConfig) (*Engine, error) {
	if twap.LongWindow == 0 {
		return nil, errors.New("twap breaker long window must be positive")
	}
	if twap.ShortWindow >= twap.LongWindow {
		return nil, fmt.Errorf("twap short window %d must be below long window %d", twap.ShortWindow, twap.LongWindow)
	}
	if ceiling.InitialCeiling < ceiling.MinCeiling {
		return nil, errors.New("debt ceiling initial below minimum")
	}
	return &Engine{
		Twap:    NewTwapBreaker(twap),
		Cascade: NewCascadeBreaker(cascade),
		Ceiling: NewDebtCeiling(ceiling),
	}, nil
}

// CheckAll runs every breaker for the block and returns the actions
// taken. totalDebt and totalCollateral are the registry aggregates for
// the debt-ratio trigger.
func (e *Engine) CheckAll(pool *amm.Pool, redemptionPrice, totalDebt, totalCollateral float64, block uint64) []Action {
	var actions []Action

	if a := e.Twap.Check(pool, block); a != nil {
		until := block + a.Blocks
		if until > e.MintingPausedUntil {
			e.MintingPausedUntil = until
		}
		actions = append(actions, *a)
	}

	if a := e.Cascade.Check(block); a != nil {
		until := block + e.Cascade.Config.PauseBlocks
		if until > e.HaltedUntil {
			e.HaltedUntil = until
		}
		actions = append(actions, *a)
	}

	if a := e.Ceiling.Update(pool, redemptionPrice, totalDebt, totalCollateral); a != nil {
		actions = append(actions, *a)
	}

	return actions
}

// RecordLiquidations feeds the cascade breaker.
func (e *Engine) RecordLiquidations(block uint64, count uint32) {
	e.Cascade.RecordLiquidations(block, count)
}

// MintingPaused reports whether opens/borrows are suspended at block.
func (e *Engine) MintingPaused(block uint64) bool {
	return block < e.MintingPausedUntil
}

// Halted reports whether all non-liquidation activity is suspended.
func (e *Engine) Halted(block uint64) bool {
	return block < e.HaltedUntil
}

// FiresThisBlock counts breakers that tripped during the last CheckAll.
func (e *Engine) FiresThisBlock() uint32 {
	var n uint32
	if e.Twap.FiredThisBlock() {
		n++
	}
	if e.Cascade.FiredThisBlock() {
		n++
	}
	if e.Ceiling.FiredThisBlock() {
		n++
	}
	return n
}
