package agent

import (
	"fmt"

	"flatcoin-lab/internal/amm"
	"flatcoin-lab/internal/cdp"
)

// HolderConfig parameterizes a CDP holder.
type HolderConfig struct {
	// TargetRatio is the collateral ratio restored by protective action.
	TargetRatio float64
	// ActionThresholdRatio below which the holder tops up collateral.
	ActionThresholdRatio float64
	// ReserveZEC is spare collateral available for top-ups.
	ReserveZEC float64
	// InitialCollateral and InitialDebt open the vault at genesis.
	InitialCollateral float64
	InitialDebt       float64
}

// DefaultHolderConfig returns the baseline holder parameters.
func DefaultHolderConfig() HolderConfig {
	return HolderConfig{
		TargetRatio:          2.5,
		ActionThresholdRatio: 1.8,
		ReserveZEC:           100,
		InitialCollateral:    50,
		InitialDebt:          1000,
	}
}

// Holder owns one vault and defends its collateral ratio.
type Holder struct {
	Config HolderConfig

	VaultID    uint64
	HasVault   bool
	ReserveZEC float64
	Owner      string
}

// NewHolder creates a CDP holder.
func NewHolder(config HolderConfig, owner string) *Holder {
	return &Holder{Config: config, ReserveZEC: config.ReserveZEC, Owner: owner}
}

// OpenVault opens the initial vault. Called once at simulation start.
func (h *Holder) OpenVault(registry *cdp.Registry, pool *amm.Pool, block uint64) error {
	id, err := registry.Open(h.Owner, h.Config.InitialCollateral, h.Config.InitialDebt, block, pool)
	if err != nil {
		return err
	}
	h.VaultID = id
	h.HasVault = true
	return nil
}

// Act monitors the vault and adds collateral when the ratio slips below
// the action threshold.
func (h *Holder) Act(registry *cdp.Registry, pool *amm.Pool, block uint64) Action {
	if !h.HasVault {
		return None
	}

	vault := registry.Get(h.VaultID)
	if vault == nil {
		// Liquidated out from under us.
		h.HasVault = false
		return None
	}

	price := pool.TWAP(registry.Config.TwapWindow)
	ratio := vault.CollateralRatio(price)

	if ratio >= h.Config.ActionThresholdRatio || ratio <= 0 {
		return None
	}

	if h.ReserveZEC > 0 {
		// Collateral needed to restore the target ratio.
		needed := h.Config.TargetRatio*vault.DebtZAI/price - vault.CollateralZEC
		add := needed
		if add > h.ReserveZEC {
			add = h.ReserveZEC
		}
		if add > 0.01 {
			h.ReserveZEC -= add
			if err := registry.Deposit(h.VaultID, add, block); err == nil {
				return Action{
					Kind:    KindVaultOp,
					VaultID: h.VaultID,
					Spent:   add,
					Detail:  fmt.Sprintf("added %.2f ZEC collateral", add),
				}
			}
			h.ReserveZEC += add
		}
	}

	return Action{
		Kind:    KindVaultOp,
		VaultID: h.VaultID,
		Detail:  fmt.Sprintf("ratio low (%.2f), no reserves to add", ratio),
	}
}
