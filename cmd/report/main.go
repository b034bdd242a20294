// Package main generates Markdown, CSV, and HTML reports from stored
// runs.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"flatcoin-lab/internal/reporting"
	chstore "flatcoin-lab/internal/storage/clickhouse"
	pgstore "flatcoin-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (optional, enables per-run verdicts)")
	target := flag.Float64("target", 50, "Peg target price")
	outputDir := flag.String("output", "output/report", "Output directory")
	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	runStore := pgstore.NewRunStore(pool)

	var generator *reporting.Generator
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect clickhouse: %v", err)
		}
		defer conn.Close()
		generator = reporting.NewGenerator(runStore, chstore.NewBlockMetricsStore(conn), *target)
	} else {
		generator = reporting.NewGenerator(runStore, nil, *target)
	}

	report, err := generator.Generate(ctx)
	if err != nil {
		logger.Fatalf("generate report: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Fatalf("create output dir: %v", err)
	}

	md := reporting.RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(*outputDir, "report.md"), []byte(md), 0o644); err != nil {
		logger.Fatalf("write markdown: %v", err)
	}

	csv := reporting.RenderSummariesCSV(report.Runs)
	if err := os.WriteFile(filepath.Join(*outputDir, "runs.csv"), []byte(csv), 0o644); err != nil {
		logger.Fatalf("write csv: %v", err)
	}

	html, err := reporting.RenderHTML(report)
	if err != nil {
		logger.Fatalf("render html: %v", err)
	}
	if err := os.WriteFile(filepath.Join(*outputDir, "report.html"), []byte(html), 0o644); err != nil {
		logger.Fatalf("write html: %v", err)
	}

	logger.Printf("report written to %s: %d runs across %d scenarios",
		*outputDir, report.RunCount, report.ScenarioCount)
}
