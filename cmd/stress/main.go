// Package main runs stress scenarios (one or the full suite) and prints
// verdicts, writing per-scenario outputs under the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"flatcoin-lab/internal/config"
	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/reporting"
	"flatcoin-lab/internal/scenario"
	"flatcoin-lab/internal/simulation"
	"flatcoin-lab/internal/verdict"
)

func main() {
	scenarioNum := flag.Uint("id", 0, "Scenario number (1-13), 0 = all")
	blocks := flag.Int("blocks", 1000, "Number of blocks per scenario")
	seed := flag.Uint64("seed", 42, "Random seed")
	configPath := flag.String("config", "", "YAML config file (optional)")
	outputDir := flag.String("output", "output/stress", "Output directory")
	flag.Parse()

	logger := log.New(os.Stderr, "[stress] ", log.LstdFlags)

	cfg := scenario.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	var ids []domain.ScenarioID
	if *scenarioNum == 0 {
		ids = domain.AllScenarios()
	} else {
		id, ok := domain.ScenarioByNumber(uint8(*scenarioNum))
		if !ok {
			logger.Fatalf("unknown scenario %d (valid: 1-13, 0 for all)", *scenarioNum)
		}
		ids = []domain.ScenarioID{id}
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{})
	ctx := context.Background()

	pass, soft, hard := 0, 0, 0
	for _, id := range ids {
		logger.Printf("[%2d] %s — %s", id, id.Name(), id.Description())

		res, err := runner.Run(ctx, id, cfg, *blocks, *seed)
		if err != nil {
			logger.Fatalf("scenario %s failed: %v", id.Name(), err)
		}

		switch res.Verdict.Overall {
		case verdict.Pass:
			pass++
		case verdict.SoftFail:
			soft++
		default:
			hard++
		}

		logger.Printf("     %s | mean dev %.2f%% | max %.2f%% | liqs %d | bad debt %.2f | breakers %d",
			res.Verdict.Overall,
			res.Summary.MeanPegDeviation*100,
			res.Summary.MaxPegDeviation*100,
			res.Summary.TotalLiquidations,
			res.Summary.TotalBadDebt,
			res.Summary.BreakerTriggers,
		)

		if err := writeScenarioOutputs(*outputDir, id, res); err != nil {
			logger.Fatalf("write outputs: %v", err)
		}
	}

	fmt.Printf("stress suite complete: %d PASS, %d SOFT FAIL, %d HARD FAIL\n", pass, soft, hard)
	if hard > 0 {
		os.Exit(1)
	}
}

func writeScenarioOutputs(outputDir string, id domain.ScenarioID, res *simulation.RunResult) error {
	dir := filepath.Join(outputDir, id.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	csv := reporting.RenderTimeseriesCSV(res.Engine.Metrics)
	if err := os.WriteFile(filepath.Join(dir, "timeseries.csv"), []byte(csv), 0o644); err != nil {
		return err
	}

	md := reporting.RenderVerdictMarkdown(res.Verdict)
	return os.WriteFile(filepath.Join(dir, "verdict.md"), []byte(md), 0o644)
}
