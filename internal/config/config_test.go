package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flatcoin-lab/internal/controller"
	"flatcoin-lab/internal/liquidation"
	"flatcoin-lab/internal/scenario"
)

func TestApply_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Apply(scenario.DefaultConfig(), []byte(""))
	require.NoError(t, err)
	assert.Equal(t, scenario.DefaultConfig(), cfg)
}

func TestApply_Overrides(t *testing.T) {
	data := []byte(`
amm:
  initial_zec: 100000
  initial_zai: 5000000
  swap_fee: 0.001
cdp:
  min_ratio: 2.0
  twap_window: 96
controller:
  mode: tick
  sensitivity: 2.0e-7
liquidation:
  mode: cascade_amm
  graduated: true
breakers:
  cascade_max_liquidations: 20
initial_redemption_price: 48
stochastic:
  enabled: true
  noise_sigma: 0.05
stability_fee_to_lps: true
`)

	cfg, err := Apply(scenario.DefaultConfig(), data)
	require.NoError(t, err)

	assert.Equal(t, 100000.0, cfg.AMMInitialZEC)
	assert.Equal(t, 0.001, cfg.AMMSwapFee)
	assert.Equal(t, 2.0, cfg.CDP.MinRatio)
	assert.Equal(t, uint64(96), cfg.CDP.TwapWindow)
	assert.Equal(t, controller.ModeTick, cfg.Controller.Mode)
	assert.Equal(t, 2e-7, cfg.Controller.Sensitivity)
	assert.Equal(t, liquidation.ModeCascadeAMM, cfg.LiquidationMode)
	assert.True(t, cfg.Liquidation.Graduated)
	assert.Equal(t, uint32(20), cfg.CascadeBreaker.MaxLiquidationsInWindow)
	assert.Equal(t, 48.0, cfg.InitialRedemptionPrice)
	assert.True(t, cfg.Stochastic)
	assert.Equal(t, 0.05, cfg.NoiseSigma)
	assert.True(t, cfg.StabilityFeeToLPs)

	// Untouched fields keep their defaults.
	assert.Equal(t, scenario.DefaultConfig().CDP.DebtFloor, cfg.CDP.DebtFloor)
}

func TestApply_InvalidResultRejected(t *testing.T) {
	_, err := Apply(scenario.DefaultConfig(), []byte("amm:\n  swap_fee: 1.5\n"))
	assert.Error(t, err)

	_, err = Apply(scenario.DefaultConfig(), []byte("liquidation:\n  mode: lottery\n"))
	assert.Error(t, err)
}

func TestApply_MalformedYAML(t *testing.T) {
	_, err := Apply(scenario.DefaultConfig(), []byte("amm: ["))
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cdp:\n  min_ratio: 1.8\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.8, cfg.CDP.MinRatio)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
