package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

// LiquidationStore implements storage.LiquidationStore using PostgreSQL.
type LiquidationStore struct {
	pool *Pool
}

// NewLiquidationStore creates a new LiquidationStore.
func NewLiquidationStore(pool *Pool) *LiquidationStore {
	return &LiquidationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// InsertBulk adds liquidation records in one transaction. Fails the
// entire batch on a duplicate (run_id, block, vault_id).
func (s *LiquidationStore) InsertBulk(ctx context.Context, records []*domain.LiquidationRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO liquidation_records (
			run_id, block, vault_id, owner, mode,
			collateral_seized, debt_to_cover, proceeds_zai,
			penalty, keeper_reward, surplus_to_owner, bad_debt
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.RunID,
			int64(r.Block),
			int64(r.VaultID),
			r.Owner,
			r.Mode,
			r.CollateralSeized,
			r.DebtToCover,
			r.ProceedsZAI,
			r.Penalty,
			r.KeeperReward,
			r.SurplusToOwner,
			r.BadDebt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert liquidation record: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByRunID retrieves all records for a run, ordered by block ASC,
// vault_id ASC.
func (s *LiquidationStore) GetByRunID(ctx context.Context, runID string) ([]*domain.LiquidationRecord, error) {
	query := `
		SELECT run_id, block, vault_id, owner, mode,
		       collateral_seized, debt_to_cover, proceeds_zai,
		       penalty, keeper_reward, surplus_to_owner, bad_debt
		FROM liquidation_records
		WHERE run_id = $1
		ORDER BY block ASC, vault_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get liquidation records: %w", err)
	}
	defer rows.Close()

	return scanLiquidationRecords(rows)
}

func scanLiquidationRecords(rows pgx.Rows) ([]*domain.LiquidationRecord, error) {
	var result []*domain.LiquidationRecord
	for rows.Next() {
		var r domain.LiquidationRecord
		var block, vaultID int64
		err := rows.Scan(
			&r.RunID,
			&block,
			&vaultID,
			&r.Owner,
			&r.Mode,
			&r.CollateralSeized,
			&r.DebtToCover,
			&r.ProceedsZAI,
			&r.Penalty,
			&r.KeeperReward,
			&r.SurplusToOwner,
			&r.BadDebt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan liquidation record: %w", err)
		}
		r.Block = uint64(block)
		r.VaultID = uint64(vaultID)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidation records: %w", err)
	}
	return result, nil
}
