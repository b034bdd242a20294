package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

// BlockMetricsStore implements storage.BlockMetricsStore using ClickHouse.
type BlockMetricsStore struct {
	conn *Conn
}

// NewBlockMetricsStore creates a new BlockMetricsStore.
func NewBlockMetricsStore(conn *Conn) *BlockMetricsStore {
	return &BlockMetricsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BlockMetricsStore = (*BlockMetricsStore)(nil)

const blockMetricsColumns = `
	run_id, block, external_price, spot_price, twap_price,
	redemption_price, redemption_rate, reserve_zec, reserve_zai,
	total_lp_shares, total_debt, total_collateral, vault_count,
	liquidation_count, bad_debt, breaker_fires, debt_ceiling,
	minting_paused, halted, zombie_vault_count, max_zombie_gap,
	mean_cr_twap, mean_cr_ext, arber_zai_total, arber_zec_total,
	cumulative_fees_zai, cumulative_il_pct
`

// InsertBulk adds the block series of one run. Fails the entire batch on
// a duplicate (run_id, block).
func (s *BlockMetricsStore) InsertBulk(ctx context.Context, blocks []*domain.BlockMetrics) error {
	if len(blocks) == 0 {
		return nil
	}

	// Intra-batch duplicate check.
	type key struct {
		runID string
		block uint64
	}
	seen := make(map[key]struct{}, len(blocks))
	for _, b := range blocks {
		if b == nil || b.RunID == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.RunID, b.Block}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// A run is inserted once; any existing row for the run means a replay.
	exists, err := s.runExists(ctx, blocks[0].RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO block_metrics (`+blockMetricsColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range blocks {
		err = batch.Append(
			b.RunID, b.Block, b.ExternalPrice, b.SpotPrice, b.TwapPrice,
			b.RedemptionPrice, b.RedemptionRate, b.ReserveZEC, b.ReserveZAI,
			b.TotalLPShares, b.TotalDebt, b.TotalCollateral, b.VaultCount,
			b.LiquidationCount, b.BadDebt, b.BreakerFires, b.DebtCeiling,
			boolToUInt8(b.MintingPaused), boolToUInt8(b.Halted),
			b.ZombieVaultCount, b.MaxZombieGap,
			b.MeanCRTwap, b.MeanCRExt, b.ArberZAITotal, b.ArberZECTotal,
			b.CumulativeFeesZAI, b.CumulativeILPct,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (s *BlockMetricsStore) runExists(ctx context.Context, runID string) (bool, error) {
	row := s.conn.QueryRow(ctx, `SELECT count() FROM block_metrics WHERE run_id = ?`, runID)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByRunID retrieves all blocks for a run, ordered by block ASC.
func (s *BlockMetricsStore) GetByRunID(ctx context.Context, runID string) ([]*domain.BlockMetrics, error) {
	query := `
		SELECT ` + blockMetricsColumns + `
		FROM block_metrics
		WHERE run_id = ?
		ORDER BY block ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanBlockMetrics(rows)
}

// GetByBlockRange retrieves blocks for a run within [start, end]
// (inclusive), ordered by block ASC.
func (s *BlockMetricsStore) GetByBlockRange(ctx context.Context, runID string, start, end uint64) ([]*domain.BlockMetrics, error) {
	query := `
		SELECT ` + blockMetricsColumns + `
		FROM block_metrics
		WHERE run_id = ? AND block >= ? AND block <= ?
		ORDER BY block ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by block range: %w", err)
	}
	defer rows.Close()

	return scanBlockMetrics(rows)
}

func scanBlockMetrics(rows driver.Rows) ([]*domain.BlockMetrics, error) {
	var result []*domain.BlockMetrics
	for rows.Next() {
		var b domain.BlockMetrics
		var mintingPaused, halted uint8
		err := rows.Scan(
			&b.RunID, &b.Block, &b.ExternalPrice, &b.SpotPrice, &b.TwapPrice,
			&b.RedemptionPrice, &b.RedemptionRate, &b.ReserveZEC, &b.ReserveZAI,
			&b.TotalLPShares, &b.TotalDebt, &b.TotalCollateral, &b.VaultCount,
			&b.LiquidationCount, &b.BadDebt, &b.BreakerFires, &b.DebtCeiling,
			&mintingPaused, &halted,
			&b.ZombieVaultCount, &b.MaxZombieGap,
			&b.MeanCRTwap, &b.MeanCRExt, &b.ArberZAITotal, &b.ArberZECTotal,
			&b.CumulativeFeesZAI, &b.CumulativeILPct,
		)
		if err != nil {
			return nil, fmt.Errorf("scan block metrics: %w", err)
		}
		b.MintingPaused = mintingPaused != 0
		b.Halted = halted != 0
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block metrics: %w", err)
	}
	return result, nil
}

func boolToUInt8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
