package reporting

import (
	"fmt"
	"strings"

	"flatcoin-lab/internal/domain"
)

// RenderTimeseriesCSV renders a block series as CSV.
func RenderTimeseriesCSV(blocks []domain.BlockMetrics) string {
	var sb strings.Builder

	sb.WriteString("block,external_price,spot_price,twap_price,redemption_price,redemption_rate,")
	sb.WriteString("total_debt,reserve_zec,reserve_zai,vault_count,liquidations,bad_debt,")
	sb.WriteString("debt_ceiling,minting_paused,halted,total_collateral,total_lp_shares,")
	sb.WriteString("zombie_vault_count,max_zombie_gap,mean_cr_twap,mean_cr_ext,")
	sb.WriteString("arber_zai_total,arber_zec_total,cumulative_fees_zai,cumulative_il_pct\n")

	for _, m := range blocks {
		sb.WriteString(fmt.Sprintf("%d,%.4f,%.4f,%.4f,%.6f,%.12f,%.2f,%.2f,%.2f,%d,%d,%.2f,%.0f,%t,%t,%.2f,%.2f,%d,%.4f,%.4f,%.4f,%.2f,%.2f,%.2f,%.6f\n",
			m.Block,
			m.ExternalPrice,
			m.SpotPrice,
			m.TwapPrice,
			m.RedemptionPrice,
			m.RedemptionRate,
			m.TotalDebt,
			m.ReserveZEC,
			m.ReserveZAI,
			m.VaultCount,
			m.LiquidationCount,
			m.BadDebt,
			m.DebtCeiling,
			m.MintingPaused,
			m.Halted,
			m.TotalCollateral,
			m.TotalLPShares,
			m.ZombieVaultCount,
			m.MaxZombieGap,
			m.MeanCRTwap,
			m.MeanCRExt,
			m.ArberZAITotal,
			m.ArberZECTotal,
			m.CumulativeFeesZAI,
			m.CumulativeILPct,
		))
	}
	return sb.String()
}

// RenderEventsCSV renders extracted events as CSV.
func RenderEventsCSV(events []domain.Event) string {
	var sb strings.Builder
	sb.WriteString("block,event_type,details\n")
	for _, e := range events {
		sb.WriteString(fmt.Sprintf("%d,%s,%q\n", e.Block, e.EventType, e.Details))
	}
	return sb.String()
}

// RenderSummariesCSV renders run rows as CSV.
func RenderSummariesCSV(rows []RunRow) string {
	var sb strings.Builder
	sb.WriteString("run_id,scenario,seed,blocks,verdict,mean_peg_deviation,max_peg_deviation,")
	sb.WriteString("total_liquidations,total_bad_debt,breaker_triggers,halt_blocks,")
	sb.WriteString("min_solvency_ratio,volatility_ratio,recovery_blocks,zombie_blocks\n")

	for _, r := range rows {
		s := r.Summary
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%s,%.6f,%.6f,%d,%.2f,%d,%d,%.4f,%.4f,%d,%d\n",
			s.RunID,
			s.ScenarioID.Name(),
			s.Seed,
			s.Blocks,
			r.Verdict.Overall,
			s.MeanPegDeviation,
			s.MaxPegDeviation,
			s.TotalLiquidations,
			s.TotalBadDebt,
			s.BreakerTriggers,
			s.HaltBlocks,
			s.MinSolvencyRatio,
			s.VolatilityRatio,
			s.RecoveryBlocks,
			s.ZombieBlocks,
		))
	}
	return sb.String()
}
