// Package controller adjusts the redemption price through a per-block
// redemption rate driven by the gap between market and redemption price.
// Two feedback laws are available: a classic PI controller and a
// Rico-style integral-only controller operating in log space.
package controller

import (
	"errors"
	"fmt"
	"math"
)

// Mode selects the feedback law. Closed set.
type Mode string

const (
	ModePI   Mode = "pi"
	ModeTick Mode = "tick"
)

// Config holds controller parameters, immutable for a run.
type Config struct {
	Mode Mode

	// PI gains.
	Kp float64
	Ki float64

	// Tick sensitivity: rate change per unit log-deviation per block.
	Sensitivity float64

	// Per-block rate corridor. +-1e-4 per 75s block is roughly +-4.2%/yr.
	MinRate float64
	MaxRate float64

	// Anti-windup bounds on the integral accumulator (PI mode).
	IntegralMin float64
	IntegralMax float64
}

// DefaultPI returns the baseline PI configuration.
func DefaultPI() Config {
	return Config{
		Mode:        ModePI,
		Kp:          2e-7,
		Ki:          5e-9,
		MinRate:     -1e-4,
		MaxRate:     1e-4,
		IntegralMin: -1e-4,
		IntegralMax: 1e-4,
	}
}

// DefaultTick returns the baseline Tick configuration.
func DefaultTick() Config {
	return Config{
		Mode:        ModeTick,
		Sensitivity: 1e-7,
		MinRate:     -1e-4,
		MaxRate:     1e-4,
		IntegralMin: -1e-4,
		IntegralMax: 1e-4,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePI, ModeTick:
	default:
		return fmt.Errorf("unknown controller mode %q", c.Mode)
	}
	if c.MinRate > c.MaxRate {
		return errors.New("controller rate corridor inverted")
	}
	if c.IntegralMin > c.IntegralMax {
		return errors.New("controller integral bounds inverted")
	}
	return nil
}

// Controller holds the redemption state updated once per block.
type Controller struct {
	Config Config

	RedemptionPrice float64
	RedemptionRate  float64
	Integral        float64
	LastBlock       uint64
}

// New creates a controller at the initial redemption price.
func New(config Config, initialRedemptionPrice float64, startBlock uint64) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if initialRedemptionPrice <= 0 {
		return nil, errors.New("initial redemption price must be positive")
	}
	return &Controller{
		Config:          config,
		RedemptionPrice: initialRedemptionPrice,
		LastBlock:       startBlock,
	}, nil
}

// Step advances the redemption price to the given block using the current
// rate: price *= (1 + rate)^elapsed.
func (c *Controller) Step(block uint64) {
	if block <= c.LastBlock {
		return
	}
	elapsed := block - c.LastBlock
	c.RedemptionPrice *= math.Pow(1+c.RedemptionRate, float64(elapsed))
	c.LastBlock = block
}

// Update steps to the block and recomputes the redemption rate from the
// market price. Returns the new rate. Feedback is negative in both modes:
// overvaluation pushes the rate down.
func (c *Controller) Update(marketPrice float64, block uint64) float64 {
	c.Step(block)

	switch c.Config.Mode {
	case ModeTick:
		return c.updateTick(marketPrice)
	default:
		return c.updatePI(marketPrice)
	}
}

func (c *Controller) updatePI(marketPrice float64) float64 {
	deviation := (marketPrice - c.RedemptionPrice) / c.RedemptionPrice

	p := -c.Config.Kp * deviation
	c.Integral = clamp(c.Integral-c.Config.Ki*deviation, c.Config.IntegralMin, c.Config.IntegralMax)

	c.RedemptionRate = clamp(p+c.Integral, c.Config.MinRate, c.Config.MaxRate)
	return c.RedemptionRate
}

func (c *Controller) updateTick(marketPrice float64) float64 {
	errLog := math.Log(marketPrice / c.RedemptionPrice)

	// The clamped integral IS the rate in Tick mode.
	c.Integral = clamp(c.Integral-c.Config.Sensitivity*errLog, c.Config.MinRate, c.Config.MaxRate)
	c.RedemptionRate = c.Integral
	return c.RedemptionRate
}

// Deviation returns (market - redemption) / redemption.
func (c *Controller) Deviation(marketPrice float64) float64 {
	return (marketPrice - c.RedemptionPrice) / c.RedemptionPrice
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
