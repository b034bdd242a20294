// Package scenario wires the AMM, vault registry, liquidation engine,
// controller, breakers, and agents into the per-block simulation loop, and
// generates the external price paths for the stress scenarios.
package scenario

import (
	"errors"
	"fmt"

	"flatcoin-lab/internal/breaker"
	"flatcoin-lab/internal/cdp"
	"flatcoin-lab/internal/controller"
	"flatcoin-lab/internal/liquidation"
)

// Config is the full parameter set for a run. Immutable once the engine
// is constructed.
type Config struct {
	// AMM genesis.
	AMMInitialZEC float64
	AMMInitialZAI float64
	AMMSwapFee    float64

	CDP         cdp.Config
	Controller  controller.Config
	Liquidation liquidation.Config

	TwapBreaker    breaker.TwapConfig
	CascadeBreaker breaker.CascadeConfig
	DebtCeiling    breaker.CeilingConfig

	InitialRedemptionPrice float64

	// LiquidationMode selects the per-block liquidation path.
	LiquidationMode liquidation.Mode

	// Stochastic gating.
	Stochastic        bool
	NoiseSigma        float64
	ArberActivityRate float64
	DemandJitter      uint64
	MinerBatchWindow  uint64

	// StabilityFeeToLPs routes accrued stability fees into pool reserves.
	StabilityFeeToLPs bool
}

// DefaultConfig returns the baseline run parameters.
func DefaultConfig() Config {
	return Config{
		AMMInitialZEC:          10000,
		AMMInitialZAI:          500000,
		AMMSwapFee:             0.003,
		CDP:                    cdp.DefaultConfig(),
		Controller:             controller.DefaultPI(),
		Liquidation:            liquidation.DefaultConfig(),
		TwapBreaker:            breaker.DefaultTwapConfig(),
		CascadeBreaker:         breaker.DefaultCascadeConfig(),
		DebtCeiling:            breaker.DefaultCeilingConfig(),
		InitialRedemptionPrice: 50,
		LiquidationMode:        liquidation.ModeTransparent,
		Stochastic:             false,
		NoiseSigma:             0.02,
		ArberActivityRate:      0.8,
		DemandJitter:           10,
		MinerBatchWindow:       10,
	}
}

// Validate rejects configurations the engine cannot run with. A failed
// validation aborts the run before the first block.
func (c Config) Validate() error {
	if c.AMMInitialZEC <= 0 || c.AMMInitialZAI <= 0 {
		return errors.New("initial AMM reserves must be positive")
	}
	if c.AMMSwapFee < 0 || c.AMMSwapFee >= 1 {
		return fmt.Errorf("swap fee %v outside [0,1)", c.AMMSwapFee)
	}
	if c.InitialRedemptionPrice <= 0 {
		return errors.New("initial redemption price must be positive")
	}
	if !c.LiquidationMode.Valid() {
		return fmt.Errorf("unknown liquidation mode %q", c.LiquidationMode)
	}
	if err := c.CDP.Validate(); err != nil {
		return fmt.Errorf("cdp config: %w", err)
	}
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller config: %w", err)
	}
	if err := c.Liquidation.Validate(); err != nil {
		return fmt.Errorf("liquidation config: %w", err)
	}
	if c.Stochastic {
		if c.ArberActivityRate < 0 || c.ArberActivityRate > 1 {
			return fmt.Errorf("arber activity rate %v outside [0,1]", c.ArberActivityRate)
		}
		if c.MinerBatchWindow == 0 {
			return errors.New("miner batch window must be positive")
		}
	}
	return nil
}
