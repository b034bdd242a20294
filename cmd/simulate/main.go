// Package main runs a single simulation scenario and writes its outputs:
// timeseries CSV, events CSV, summary JSON, and optional persistence to
// PostgreSQL and ClickHouse.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"flatcoin-lab/internal/config"
	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/metrics"
	"flatcoin-lab/internal/reporting"
	"flatcoin-lab/internal/scenario"
	"flatcoin-lab/internal/simulation"
	"flatcoin-lab/internal/storage"
	chstore "flatcoin-lab/internal/storage/clickhouse"
	"flatcoin-lab/internal/storage/migrations"
	pgstore "flatcoin-lab/internal/storage/postgres"
)

func main() {
	scenarioNum := flag.Uint("scenario", 1, "Scenario number (1-13)")
	blocks := flag.Int("blocks", 1000, "Number of blocks to simulate")
	seed := flag.Uint64("seed", 42, "Random seed")
	configPath := flag.String("config", "", "YAML config file (optional)")
	outputDir := flag.String("output", "output", "Output directory")
	outputJSON := flag.Bool("json", false, "Print run summary as JSON to stdout")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (optional)")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	id, ok := domain.ScenarioByNumber(uint8(*scenarioNum))
	if !ok {
		logger.Fatalf("unknown scenario %d (valid: 1-13)", *scenarioNum)
	}

	cfg := scenario.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	ctx := context.Background()
	opts := simulation.RunnerOptions{}

	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("migrate postgres: %v", err)
		}
		opts.RunStore = pgstore.NewRunStore(pool)
		opts.LiquidationStore = pgstore.NewLiquidationStore(pool)
	}

	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect clickhouse: %v", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("migrate clickhouse: %v", err)
		}
		opts.BlockMetricsStore = chstore.NewBlockMetricsStore(conn)
	}

	runner := simulation.NewRunner(opts)

	logger.Printf("running %s (%s): %d blocks, seed %d", id.Name(), id.Description(), *blocks, *seed)
	res, err := runner.Run(ctx, id, cfg, *blocks, *seed)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Fatalf("run already stored (same scenario/config/seed): %v", err)
		}
		logger.Fatalf("run failed: %v", err)
	}

	dir := filepath.Join(*outputDir, id.Name())
	if err := saveOutputs(dir, res); err != nil {
		logger.Fatalf("save outputs: %v", err)
	}

	logger.Printf("verdict %s: mean peg dev %.2f%%, max %.2f%%, liquidations %d, bad debt %.2f",
		res.Verdict.Overall,
		res.Summary.MeanPegDeviation*100,
		res.Summary.MaxPegDeviation*100,
		res.Summary.TotalLiquidations,
		res.Summary.TotalBadDebt,
	)

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Summary); err != nil {
			logger.Fatalf("encode summary: %v", err)
		}
	}
}

// saveOutputs writes timeseries.csv, events.csv, summary.json, and
// verdict.md into the run's output directory.
func saveOutputs(dir string, res *simulation.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	csv := reporting.RenderTimeseriesCSV(res.Engine.Metrics)
	if err := os.WriteFile(filepath.Join(dir, "timeseries.csv"), []byte(csv), 0o644); err != nil {
		return err
	}

	events := metrics.ExtractEvents(res.Engine.Metrics)
	eventsCSV := reporting.RenderEventsCSV(events)
	if err := os.WriteFile(filepath.Join(dir, "events.csv"), []byte(eventsCSV), 0o644); err != nil {
		return err
	}

	summaryJSON, err := json.MarshalIndent(res.Summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), summaryJSON, 0o644); err != nil {
		return err
	}

	md := reporting.RenderVerdictMarkdown(res.Verdict)
	return os.WriteFile(filepath.Join(dir, "verdict.md"), []byte(md), 0o644)
}
