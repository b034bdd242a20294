package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runSummaryColumns = `
	run_id, scenario_id, seed, blocks,
	mean_peg_deviation, max_peg_deviation, final_peg_deviation,
	total_liquidations, total_bad_debt, breaker_triggers, halt_blocks, pause_blocks,
	mean_spot_price, min_spot_price, max_spot_price, final_spot_price,
	final_redemption_price, final_debt_ceiling,
	min_solvency_ratio, volatility_ratio, recovery_blocks,
	zombie_blocks, max_zombie_gap, verdict, created_at_ms
`

// Insert adds a run summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO run_summaries (` + runSummaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err := s.pool.Exec(ctx, query,
		summary.RunID,
		int16(summary.ScenarioID),
		int64(summary.Seed),
		int64(summary.Blocks),
		summary.MeanPegDeviation,
		summary.MaxPegDeviation,
		summary.FinalPegDeviation,
		int64(summary.TotalLiquidations),
		summary.TotalBadDebt,
		int64(summary.BreakerTriggers),
		int64(summary.HaltBlocks),
		int64(summary.PauseBlocks),
		summary.MeanSpotPrice,
		summary.MinSpotPrice,
		summary.MaxSpotPrice,
		summary.FinalSpotPrice,
		summary.FinalRedemptionPrice,
		summary.FinalDebtCeiling,
		summary.MinSolvencyRatio,
		summary.VolatilityRatio,
		int64(summary.RecoveryBlocks),
		int64(summary.ZombieBlocks),
		summary.MaxZombieGap,
		summary.VerdictLabel,
		summary.CreatedAtUnixMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary by run_id. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + runSummaryColumns + ` FROM run_summaries WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	summary, err := scanRunSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary by id: %w", err)
	}
	return summary, nil
}

// GetByScenario retrieves all summaries for a scenario, ordered by seed
// ASC, run_id ASC.
func (s *RunStore) GetByScenario(ctx context.Context, scenario domain.ScenarioID) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		WHERE scenario_id = $1
		ORDER BY seed ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, int16(scenario))
	if err != nil {
		return nil, fmt.Errorf("get run summaries by scenario: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// List retrieves all summaries ordered by created_at ASC, run_id ASC.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		ORDER BY created_at_ms ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list run summaries: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(row rowScanner) (*domain.RunSummary, error) {
	var s domain.RunSummary
	var scenarioID int16
	var seed, blocks, liq, triggers, halt, pause, recovery, zombie int64

	err := row.Scan(
		&s.RunID,
		&scenarioID,
		&seed,
		&blocks,
		&s.MeanPegDeviation,
		&s.MaxPegDeviation,
		&s.FinalPegDeviation,
		&liq,
		&s.TotalBadDebt,
		&triggers,
		&halt,
		&pause,
		&s.MeanSpotPrice,
		&s.MinSpotPrice,
		&s.MaxSpotPrice,
		&s.FinalSpotPrice,
		&s.FinalRedemptionPrice,
		&s.FinalDebtCeiling,
		&s.MinSolvencyRatio,
		&s.VolatilityRatio,
		&recovery,
		&zombie,
		&s.MaxZombieGap,
		&s.VerdictLabel,
		&s.CreatedAtUnixMs,
	)
	if err != nil {
		return nil, err
	}

	s.ScenarioID = domain.ScenarioID(scenarioID)
	s.Seed = uint64(seed)
	s.Blocks = uint64(blocks)
	s.TotalLiquidations = uint32(liq)
	s.BreakerTriggers = uint32(triggers)
	s.HaltBlocks = uint64(halt)
	s.PauseBlocks = uint64(pause)
	s.RecoveryBlocks = uint64(recovery)
	s.ZombieBlocks = uint64(zombie)
	return &s, nil
}

func scanRunSummaries(rows pgx.Rows) ([]*domain.RunSummary, error) {
	var result []*domain.RunSummary
	for rows.Next() {
		s, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summaries: %w", err)
	}
	return result, nil
}
