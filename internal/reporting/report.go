// Package reporting renders run results as CSV, Markdown, and HTML.
package reporting

import (
	"time"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/metrics"
	"flatcoin-lab/internal/verdict"
)

// Report is the full stress report over a set of runs.
type Report struct {
	GeneratedAt   time.Time
	ScenarioCount int
	RunCount      int

	// Rows sorted by scenario_id, seed.
	Runs []RunRow

	// Monte Carlo aggregates per scenario, sorted by scenario_id.
	Aggregates []metrics.MonteCarloAggregate
}

// RunRow is one run in the report table.
type RunRow struct {
	Summary domain.RunSummary
	Verdict verdict.Result
}
