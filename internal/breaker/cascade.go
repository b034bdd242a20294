package breaker

import "fmt"

// CascadeConfig parameterizes the liquidation-cascade breaker.
type CascadeConfig struct {
	// MaxLiquidationsInWindow trips the breaker when exceeded.
	MaxLiquidationsInWindow uint32
	// WindowBlocks is the trailing window over which liquidations count.
	WindowBlocks uint64
	// PauseBlocks is the halt duration after a trip.
	PauseBlocks uint64
}

// DefaultCascadeConfig returns the baseline cascade breaker parameters.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		MaxLiquidationsInWindow: 10,
		WindowBlocks:            48,
		PauseBlocks:             96,
	}
}

// CascadeBreaker halts non-liquidation activity when liquidations in the
// trailing window exceed the limit.
type CascadeBreaker struct {
	Config        CascadeConfig
	Triggered     bool
	ResumeAtBlock uint64
	TriggerCount  uint64

	// liquidation counts per block, pruned to the window
	log            []blockCount
	firedThisBlock bool
}

type blockCount struct {
	block uint64
	count uint32
}

// NewCascadeBreaker creates a cascade breaker.
func NewCascadeBreaker(config CascadeConfig) *CascadeBreaker {
	return &CascadeBreaker{Config: config}
}

// RecordLiquidations registers liquidations executed at a block.
func (b *CascadeBreaker) RecordLiquidations(block uint64, count uint32) {
	if count > 0 {
		b.log = append(b.log, blockCount{block: block, count: count})
	}
}

// Check evaluates the breaker for a block.
func (b *CascadeBreaker) Check(block uint64) *Action {
	b.firedThisBlock = false

	if b.Triggered {
		if block >= b.ResumeAtBlock {
			b.Triggered = false
		}
		return nil
	}

	var windowStart uint64
	if block > b.Config.WindowBlocks {
		windowStart = block - b.Config.WindowBlocks
	}

	var total uint32
	for _, e := range b.log {
		if e.block >= windowStart {
			total += e.count
		}
	}

	if total <= b.Config.MaxLiquidationsInWindow {
		return nil
	}

	b.Triggered = true
	b.ResumeAtBlock = block + b.Config.PauseBlocks
	b.TriggerCount++
	b.firedThisBlock = true

	// Prune entries that fell out of the window.
	kept := b.log[:0]
	for _, e := range b.log {
		if e.block >= windowStart {
			kept = append(kept, e)
		}
	}
	b.log = kept

	return &Action{
		Kind:   ActionEmergencyHalt,
		Blocks: b.Config.PauseBlocks,
		Reason: fmt.Sprintf("cascade: %d liquidations in %d blocks exceeds limit %d",
			total, b.Config.WindowBlocks, b.Config.MaxLiquidationsInWindow),
	}
}

// Active reports whether the halt window covers the block.
func (b *CascadeBreaker) Active(block uint64) bool {
	return b.Triggered && block < b.ResumeAtBlock
}

// FiredThisBlock reports whether the last Check tripped the breaker.
func (b *CascadeBreaker) FiredThisBlock() bool {
	return b.firedThisBlock
}
