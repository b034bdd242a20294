// Package breaker implements per-block circuit breakers that gate
// minting, borrowing, and liquidation when the system crosses stress
// thresholds: TWAP deviation, liquidation cascades, and a dynamic debt
// ceiling.
package breaker

import (
	"fmt"

	"flatcoin-lab/internal/amm"
)

// TwapConfig parameterizes the TWAP-deviation breaker.
type TwapConfig struct {
	// MaxChangePct is the deviation fraction that trips the breaker.
	MaxChangePct float64
	// ShortWindow selects the fast signal: 0 compares the current spot
	// against the long TWAP; a positive value compares a short-horizon
	// TWAP instead (smoother, trips later).
	ShortWindow uint64
	// LongWindow is the reference TWAP horizon.
	LongWindow uint64
	// PauseBlocks is how long minting stays suspended after a trip.
	PauseBlocks uint64
}

// DefaultTwapConfig returns the baseline TWAP breaker parameters.
func DefaultTwapConfig() TwapConfig {
	return TwapConfig{
		MaxChangePct: 0.15,
		ShortWindow:  0,  // spot vs TWAP
		LongWindow:   48, // ~1 hour at 75s blocks
		PauseBlocks:  48,
	}
}

// TwapBreaker fires when the fast price signal diverges from the
// long-horizon TWAP beyond the configured fraction.
type TwapBreaker struct {
	Config        TwapConfig
	Triggered     bool
	ResumeAtBlock uint64
	TriggerCount  uint64

	firedThisBlock bool
}

// NewTwapBreaker creates a TWAP-deviation breaker.
func NewTwapBreaker(config TwapConfig) *TwapBreaker {
	return &TwapBreaker{Config: config}
}

// Check evaluates the breaker for a block. Returns the pause action taken,
// or nil.
func (b *TwapBreaker) Check(pool *amm.Pool, block uint64) *Action {
	b.firedThisBlock = false

	if b.Triggered {
		if block >= b.ResumeAtBlock {
			b.Triggered = false
		}
		return nil
	}

	fast := pool.SpotPrice()
	if b.Config.ShortWindow > 0 {
		fast = pool.TWAP(b.Config.ShortWindow)
	}
	long := pool.TWAP(b.Config.LongWindow)
	if long == 0 {
		return nil
	}

	change := (fast - long) / long
	if change < 0 {
		change = -change
	}

	if change <= b.Config.MaxChangePct {
		return nil
	}

	b.Triggered = true
	b.ResumeAtBlock = block + b.Config.PauseBlocks
	b.TriggerCount++
	b.firedThisBlock = true

	return &Action{
		Kind:   ActionPauseMinting,
		Blocks: b.Config.PauseBlocks,
		Reason: fmt.Sprintf("TWAP divergence %.2f%% exceeds %.2f%% (fast=%.2f long=%.2f)",
			change*100, b.Config.MaxChangePct*100, fast, long),
	}
}

// Active reports whether the pause window covers the block.
func (b *TwapBreaker) Active(block uint64) bool {
	return b.Triggered && block < b.ResumeAtBlock
}

// FiredThisBlock reports whether the last Check tripped the breaker.
func (b *TwapBreaker) FiredThisBlock() bool {
	return b.firedThisBlock
}
