// Package simulation executes complete runs: build the engine from a
// config, drive it over a scenario price path, compute the summary and
// verdict, and persist results through the configured stores.
package simulation

import (
	"context"
	"fmt"
	"time"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/idhash"
	"flatcoin-lab/internal/metrics"
	"flatcoin-lab/internal/scenario"
	"flatcoin-lab/internal/storage"
	"flatcoin-lab/internal/verdict"
)

// Runner executes simulations and persists their results.
type Runner struct {
	runStore          storage.RunStore
	blockMetricsStore storage.BlockMetricsStore
	liquidationStore  storage.LiquidationStore
	thresholds        verdict.Thresholds
	now               func() time.Time
}

// RunnerOptions contains configuration for creating a Runner. Nil stores
// disable persistence of the corresponding record kind.
type RunnerOptions struct {
	RunStore          storage.RunStore
	BlockMetricsStore storage.BlockMetricsStore
	LiquidationStore  storage.LiquidationStore
	Thresholds        *verdict.Thresholds
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	th := verdict.DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	return &Runner{
		runStore:          opts.RunStore,
		blockMetricsStore: opts.BlockMetricsStore,
		liquidationStore:  opts.LiquidationStore,
		thresholds:        th,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic summary timestamps.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunResult bundles everything a completed run produced.
type RunResult struct {
	RunID   string
	Engine  *scenario.Engine
	Summary domain.RunSummary
	Verdict verdict.Result
}

// Run executes one scenario.
// Steps:
//  1. Validate config (NewEngine aborts on ConfigInvalid)
//  2. Compute the deterministic run_id
//  3. Generate the price path, apply noise when stochastic
//  4. Drive the per-block loop
//  5. Compute summary and verdict
//  6. Persist run summary, block series, and liquidation records
func (r *Runner) Run(ctx context.Context, id domain.ScenarioID, cfg scenario.Config, blocks int, seed uint64) (*RunResult, error) {
	engine, err := scenario.NewEngine(cfg, seed)
	if err != nil {
		return nil, err
	}
	engine.AddAgents(id)

	runID := idhash.ComputeRunID(id, seed, blocks, idhash.Fingerprint(configBytes(cfg)))
	engine.RunID = runID

	prices := scenario.GeneratePrices(id, blocks, seed)
	if cfg.Stochastic {
		scenario.ApplyPriceNoise(prices, cfg.NoiseSigma, seed)
	}
	engine.Run(prices)

	summary := metrics.ComputeSummary(engine.Metrics, cfg.InitialRedemptionPrice)
	summary.RunID = runID
	summary.ScenarioID = id
	summary.Seed = seed
	summary.CreatedAtUnixMs = r.now().UnixMilli()

	v := verdict.Evaluate(engine.Metrics, cfg.InitialRedemptionPrice, r.thresholds)
	summary.VerdictLabel = string(v.Overall)

	if err := r.persist(ctx, engine, &summary); err != nil {
		return nil, err
	}

	return &RunResult{
		RunID:   runID,
		Engine:  engine,
		Summary: summary,
		Verdict: v,
	}, nil
}

func (r *Runner) persist(ctx context.Context, engine *scenario.Engine, summary *domain.RunSummary) error {
	if r.runStore != nil {
		if err := r.runStore.Insert(ctx, summary); err != nil {
			return fmt.Errorf("persist run summary: %w", err)
		}
	}

	if r.blockMetricsStore != nil {
		series := make([]*domain.BlockMetrics, len(engine.Metrics))
		for i := range engine.Metrics {
			series[i] = &engine.Metrics[i]
		}
		if err := r.blockMetricsStore.InsertBulk(ctx, series); err != nil {
			return fmt.Errorf("persist block metrics: %w", err)
		}
	}

	if r.liquidationStore != nil && len(engine.Liquidator.History) > 0 {
		records := make([]*domain.LiquidationRecord, 0, len(engine.Liquidator.History))
		for _, res := range engine.Liquidator.History {
			records = append(records, &domain.LiquidationRecord{
				RunID:            summary.RunID,
				Block:            res.Block,
				VaultID:          res.VaultID,
				Owner:            res.Owner,
				Mode:             string(res.Mode),
				CollateralSeized: res.CollateralSeized,
				DebtToCover:      res.DebtToCover,
				ProceedsZAI:      res.ProceedsZAI,
				Penalty:          res.Penalty,
				KeeperReward:     res.KeeperReward,
				SurplusToOwner:   res.SurplusToOwner,
				BadDebt:          res.BadDebt,
			})
		}
		if err := r.liquidationStore.InsertBulk(ctx, records); err != nil {
			return fmt.Errorf("persist liquidation records: %w", err)
		}
	}

	return nil
}

// configBytes serializes the fields that affect simulation behavior into
// a stable fingerprint input.
func configBytes(cfg scenario.Config) []byte {
	return []byte(fmt.Sprintf("%+v", cfg))
}
