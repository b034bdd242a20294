// Package config loads run configuration from YAML files and maps it onto
// the engine's parameter structs. Fields left out of the file keep their
// defaults, so a config file only states what it changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"flatcoin-lab/internal/controller"
	"flatcoin-lab/internal/liquidation"
	"flatcoin-lab/internal/scenario"
)

// File is the YAML schema. Pointers distinguish "absent" from zero.
type File struct {
	AMM struct {
		InitialZEC *float64 `yaml:"initial_zec"`
		InitialZAI *float64 `yaml:"initial_zai"`
		SwapFee    *float64 `yaml:"swap_fee"`
	} `yaml:"amm"`

	CDP struct {
		MinRatio           *float64 `yaml:"min_ratio"`
		LiquidationPenalty *float64 `yaml:"liquidation_penalty"`
		DebtFloor          *float64 `yaml:"debt_floor"`
		StabilityFeeRate   *float64 `yaml:"stability_fee_rate"`
		TwapWindow         *uint64  `yaml:"twap_window"`
	} `yaml:"cdp"`

	Controller struct {
		Mode        *string  `yaml:"mode"`
		Kp          *float64 `yaml:"kp"`
		Ki          *float64 `yaml:"ki"`
		Sensitivity *float64 `yaml:"sensitivity"`
		MinRate     *float64 `yaml:"min_rate"`
		MaxRate     *float64 `yaml:"max_rate"`
	} `yaml:"controller"`

	Liquidation struct {
		Mode                 *string  `yaml:"mode"`
		MaxPerBlock          *uint32  `yaml:"max_per_block"`
		KeeperRewardPct      *float64 `yaml:"keeper_reward_pct"`
		SelfPenaltyPct       *float64 `yaml:"self_penalty_pct"`
		PenaltyToLPsPct      *float64 `yaml:"penalty_to_lps_pct"`
		Graduated            *bool    `yaml:"graduated"`
		GraduatedPctPerBlock *float64 `yaml:"graduated_pct_per_block"`
		GraduatedCRFloor     *float64 `yaml:"graduated_cr_floor"`
		ZombieGapThreshold   *float64 `yaml:"zombie_gap_threshold"`
	} `yaml:"liquidation"`

	Breakers struct {
		TwapMaxChangePct        *float64 `yaml:"twap_max_change_pct"`
		TwapShortWindow         *uint64  `yaml:"twap_short_window"`
		TwapLongWindow          *uint64  `yaml:"twap_long_window"`
		TwapPauseBlocks         *uint64  `yaml:"twap_pause_blocks"`
		CascadeMaxLiquidations  *uint32  `yaml:"cascade_max_liquidations"`
		CascadeWindowBlocks     *uint64  `yaml:"cascade_window_blocks"`
		CascadePauseBlocks      *uint64  `yaml:"cascade_pause_blocks"`
		CeilingInitial          *float64 `yaml:"ceiling_initial"`
		CeilingMin              *float64 `yaml:"ceiling_min"`
		CeilingReductionFactor  *float64 `yaml:"ceiling_reduction_factor"`
		CeilingGrowthPerBlock   *float64 `yaml:"ceiling_growth_per_block"`
		CeilingDeviationTrigger *float64 `yaml:"ceiling_deviation_trigger"`
	} `yaml:"breakers"`

	InitialRedemptionPrice *float64 `yaml:"initial_redemption_price"`

	Stochastic struct {
		Enabled           *bool    `yaml:"enabled"`
		NoiseSigma        *float64 `yaml:"noise_sigma"`
		ArberActivityRate *float64 `yaml:"arber_activity_rate"`
		DemandJitter      *uint64  `yaml:"demand_jitter"`
		MinerBatchWindow  *uint64  `yaml:"miner_batch_window"`
	} `yaml:"stochastic"`

	StabilityFeeToLPs *bool `yaml:"stability_fee_to_lps"`
}

// Load reads a YAML file and applies it over the default config.
func Load(path string) (scenario.Config, error) {
	cfg := scenario.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return Apply(cfg, data)
}

// Apply overlays YAML content onto a base config and validates the result.
func Apply(base scenario.Config, data []byte) (scenario.Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse config: %w", err)
	}

	cfg := base

	setF(&cfg.AMMInitialZEC, f.AMM.InitialZEC)
	setF(&cfg.AMMInitialZAI, f.AMM.InitialZAI)
	setF(&cfg.AMMSwapFee, f.AMM.SwapFee)

	setF(&cfg.CDP.MinRatio, f.CDP.MinRatio)
	setF(&cfg.CDP.LiquidationPenalty, f.CDP.LiquidationPenalty)
	setF(&cfg.CDP.DebtFloor, f.CDP.DebtFloor)
	setF(&cfg.CDP.StabilityFeeRate, f.CDP.StabilityFeeRate)
	setU64(&cfg.CDP.TwapWindow, f.CDP.TwapWindow)

	if f.Controller.Mode != nil {
		cfg.Controller.Mode = controller.Mode(*f.Controller.Mode)
	}
	setF(&cfg.Controller.Kp, f.Controller.Kp)
	setF(&cfg.Controller.Ki, f.Controller.Ki)
	setF(&cfg.Controller.Sensitivity, f.Controller.Sensitivity)
	setF(&cfg.Controller.MinRate, f.Controller.MinRate)
	setF(&cfg.Controller.MaxRate, f.Controller.MaxRate)

	if f.Liquidation.Mode != nil {
		cfg.LiquidationMode = liquidation.Mode(*f.Liquidation.Mode)
	}
	setU32(&cfg.Liquidation.MaxPerBlock, f.Liquidation.MaxPerBlock)
	setF(&cfg.Liquidation.KeeperRewardPct, f.Liquidation.KeeperRewardPct)
	setF(&cfg.Liquidation.SelfPenaltyPct, f.Liquidation.SelfPenaltyPct)
	setF(&cfg.Liquidation.PenaltyToLPsPct, f.Liquidation.PenaltyToLPsPct)
	setB(&cfg.Liquidation.Graduated, f.Liquidation.Graduated)
	setF(&cfg.Liquidation.GraduatedPctPerBlock, f.Liquidation.GraduatedPctPerBlock)
	setF(&cfg.Liquidation.GraduatedCRFloor, f.Liquidation.GraduatedCRFloor)
	setF(&cfg.Liquidation.ZombieGapThreshold, f.Liquidation.ZombieGapThreshold)

	setF(&cfg.TwapBreaker.MaxChangePct, f.Breakers.TwapMaxChangePct)
	setU64(&cfg.TwapBreaker.ShortWindow, f.Breakers.TwapShortWindow)
	setU64(&cfg.TwapBreaker.LongWindow, f.Breakers.TwapLongWindow)
	setU64(&cfg.TwapBreaker.PauseBlocks, f.Breakers.TwapPauseBlocks)
	setU32(&cfg.CascadeBreaker.MaxLiquidationsInWindow, f.Breakers.CascadeMaxLiquidations)
	setU64(&cfg.CascadeBreaker.WindowBlocks, f.Breakers.CascadeWindowBlocks)
	setU64(&cfg.CascadeBreaker.PauseBlocks, f.Breakers.CascadePauseBlocks)
	setF(&cfg.DebtCeiling.InitialCeiling, f.Breakers.CeilingInitial)
	setF(&cfg.DebtCeiling.MinCeiling, f.Breakers.CeilingMin)
	setF(&cfg.DebtCeiling.ReductionFactor, f.Breakers.CeilingReductionFactor)
	setF(&cfg.DebtCeiling.GrowthPerBlock, f.Breakers.CeilingGrowthPerBlock)
	setF(&cfg.DebtCeiling.DeviationThreshold, f.Breakers.CeilingDeviationTrigger)

	setF(&cfg.InitialRedemptionPrice, f.InitialRedemptionPrice)

	setB(&cfg.Stochastic, f.Stochastic.Enabled)
	setF(&cfg.NoiseSigma, f.Stochastic.NoiseSigma)
	setF(&cfg.ArberActivityRate, f.Stochastic.ArberActivityRate)
	setU64(&cfg.DemandJitter, f.Stochastic.DemandJitter)
	setU64(&cfg.MinerBatchWindow, f.Stochastic.MinerBatchWindow)

	setB(&cfg.StabilityFeeToLPs, f.StabilityFeeToLPs)

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setU64(dst *uint64, src *uint64) {
	if src != nil {
		*dst = *src
	}
}

func setU32(dst *uint32, src *uint32) {
	if src != nil {
		*dst = *src
	}
}

func setB(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
