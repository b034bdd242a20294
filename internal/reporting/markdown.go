package reporting

import (
	"fmt"
	"strings"
	"time"

	"flatcoin-lab/internal/verdict"
)

// RenderMarkdown renders a report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Stress Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Scenarios: %d | Runs: %d\n\n", r.ScenarioCount, r.RunCount))

	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Scenario | Seed | Verdict | Mean Dev | Max Dev | Liqs | Bad Debt | Breakers | Min Solvency |\n")
		sb.WriteString("|----------|------|---------|----------|---------|------|----------|----------|--------------|\n")
		for _, row := range r.Runs {
			s := row.Summary
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %.2f%% | %.2f%% | %d | %.2f | %d | %.2f |\n",
				s.ScenarioID.Name(),
				s.Seed,
				row.Verdict.Overall,
				s.MeanPegDeviation*100,
				s.MaxPegDeviation*100,
				s.TotalLiquidations,
				s.TotalBadDebt,
				s.BreakerTriggers,
				s.MinSolvencyRatio,
			))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No runs recorded.\n\n")
	}

	// Failed criteria get their own section so a reader does not have to
	// expand every run.
	var failures []string
	for _, row := range r.Runs {
		for _, c := range row.Verdict.Criteria {
			if !c.Passed {
				failures = append(failures, fmt.Sprintf("- %s seed %d: **%s** (%s) — %s",
					row.Summary.ScenarioID.Name(), row.Summary.Seed, c.Name, c.Severity, c.Details))
			}
		}
	}
	if len(failures) > 0 {
		sb.WriteString("## Failed Criteria\n\n")
		for _, f := range failures {
			sb.WriteString(f + "\n")
		}
		sb.WriteString("\n")
	}

	if len(r.Aggregates) > 0 {
		sb.WriteString("## Monte Carlo Aggregates\n\n")
		sb.WriteString("| Scenario | Runs | Mean Dev (mean/p95) | Bad Debt (mean/p99) | Liqs (mean) | Min Solvency (min) |\n")
		sb.WriteString("|----------|------|---------------------|---------------------|-------------|--------------------|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f%% / %.2f%% | %.2f / %.2f | %.1f | %.2f |\n",
				a.ScenarioID.Name(),
				a.Runs,
				a.MeanPegDeviation.Mean*100,
				a.MeanPegDeviation.P95*100,
				a.TotalBadDebt.Mean,
				a.TotalBadDebt.P99,
				a.Liquidations.Mean,
				a.MinSolvency.Min,
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderVerdictMarkdown renders one verdict checklist as Markdown.
func RenderVerdictMarkdown(v verdict.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Verdict: %s**\n\n", v.Overall))
	sb.WriteString("| Criterion | Status | Details |\n")
	sb.WriteString("|-----------|--------|---------|\n")
	for _, c := range v.Criteria {
		status := "PASS"
		if !c.Passed {
			status = string(c.Severity)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", c.Name, status, c.Details))
	}
	return sb.String()
}
