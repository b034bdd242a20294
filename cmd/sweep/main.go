// Package main runs parameter sweeps: a single-parameter grid, or the
// staged coarse-to-Monte-Carlo sweep.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/sweep"
)

func main() {
	blocks := flag.Int("blocks", 500, "Blocks per scenario run")
	seed := flag.Uint64("seed", 42, "Base random seed")
	target := flag.Float64("target", 50, "Peg target price for scoring")
	outputDir := flag.String("output", "output/sweep", "Output directory")

	param := flag.String("param", "", "Parameter to sweep (grid mode)")
	values := flag.String("values", "", "Comma-separated values (grid mode)")

	full := flag.Bool("full", false, "Run the staged 4-stage sweep")
	mcIterations := flag.Int("mc-iterations", 100, "Monte Carlo iterations (staged sweep)")
	finalIterations := flag.Int("final-iterations", 500, "Final validation iterations (staged sweep)")

	flag.Parse()

	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)
	engine := sweep.NewEngine(*blocks, *seed, *target)

	var results []sweep.Result
	var err error

	switch {
	case *full:
		logger.Printf("staged sweep: %d blocks, %d MC iterations, %d final iterations",
			*blocks, *mcIterations, *finalIterations)
		results, err = engine.RunStaged(sweep.DefaultCoarseParams(), 20, *mcIterations, 3, *finalIterations)

	case *param != "":
		vals, perr := parseValues(*values)
		if perr != nil {
			logger.Fatalf("parse values: %v", perr)
		}
		logger.Printf("grid sweep: %s over %v", *param, vals)
		results, err = engine.RunGrid(
			[]sweep.Param{{Name: *param, Values: vals}},
			domain.AllScenarios(),
		)
		sweep.SortResults(results)

	default:
		logger.Fatal("either --full or --param/--values is required")
	}

	if err != nil {
		logger.Fatalf("sweep failed: %v", err)
	}

	if err := writeResults(*outputDir, results); err != nil {
		logger.Fatalf("write results: %v", err)
	}

	for i, r := range results {
		if i >= 5 {
			break
		}
		logger.Printf("#%d score %.6f params %s", i+1, r.OverallScore, formatParams(r.Params))
	}
	fmt.Printf("sweep complete: %d combinations evaluated\n", len(results))
}

func parseValues(s string) ([]float64, error) {
	if s == "" {
		return nil, fmt.Errorf("--values is required with --param")
	}
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func formatParams(params []sweep.ParamValue) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%.4f", p.Name, p.Value)
	}
	return strings.Join(parts, " ")
}

// writeResults saves the sweep results CSV.
func writeResults(dir string, results []sweep.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	var sb strings.Builder
	if len(results) > 0 {
		header := make([]string, 0, len(results[0].Params)+1+len(results[0].Scores))
		for _, p := range results[0].Params {
			header = append(header, p.Name)
		}
		header = append(header, "overall_score")
		for _, s := range results[0].Scores {
			header = append(header, "score_"+s.Scenario.Name())
		}
		sb.WriteString(strings.Join(header, ",") + "\n")
	}
	for _, r := range results {
		row := make([]string, 0, len(r.Params)+1+len(r.Scores))
		for _, p := range r.Params {
			row = append(row, fmt.Sprintf("%.6f", p.Value))
		}
		row = append(row, fmt.Sprintf("%.6f", r.OverallScore))
		for _, s := range r.Scores {
			row = append(row, fmt.Sprintf("%.6f", s.Score))
		}
		sb.WriteString(strings.Join(row, ",") + "\n")
	}

	return os.WriteFile(filepath.Join(dir, "results.csv"), []byte(sb.String()), 0o644)
}
