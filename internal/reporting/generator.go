package reporting

import (
	"context"
	"sort"
	"time"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/metrics"
	"flatcoin-lab/internal/storage"
	"flatcoin-lab/internal/verdict"
)

// Generator produces reports from stored run data.
type Generator struct {
	runStore     storage.RunStore
	metricsStore storage.BlockMetricsStore
	thresholds   verdict.Thresholds
	targetPrice  float64
	now          func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(runStore storage.RunStore, metricsStore storage.BlockMetricsStore, targetPrice float64) *Generator {
	return &Generator{
		runStore:     runStore,
		metricsStore: metricsStore,
		thresholds:   verdict.DefaultThresholds(),
		targetPrice:  targetPrice,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds overrides the verdict thresholds.
func (g *Generator) WithThresholds(th verdict.Thresholds) *Generator {
	g.thresholds = th
	return g
}

// Generate produces a complete report from every stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	summaries, err := g.runStore.List(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]RunRow, 0, len(summaries))
	scenarios := make(map[domain.ScenarioID][]domain.RunSummary)

	for _, s := range summaries {
		row := RunRow{Summary: *s}

		// Re-derive the verdict from stored blocks when available; a
		// summary row alone carries only the label. The metrics store is
		// optional.
		var blocks []*domain.BlockMetrics
		if g.metricsStore != nil {
			blocks, err = g.metricsStore.GetByRunID(ctx, s.RunID)
			if err != nil {
				blocks = nil
			}
		}
		if len(blocks) > 0 {
			series := make([]domain.BlockMetrics, len(blocks))
			for i, b := range blocks {
				series[i] = *b
			}
			row.Verdict = verdict.Evaluate(series, g.targetPrice, g.thresholds)
		} else {
			row.Verdict = verdict.Result{Overall: verdict.Verdict(s.VerdictLabel)}
		}

		rows = append(rows, row)
		scenarios[s.ScenarioID] = append(scenarios[s.ScenarioID], *s)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Summary.ScenarioID != rows[j].Summary.ScenarioID {
			return rows[i].Summary.ScenarioID < rows[j].Summary.ScenarioID
		}
		return rows[i].Summary.Seed < rows[j].Summary.Seed
	})

	ids := make([]domain.ScenarioID, 0, len(scenarios))
	for id := range scenarios {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	aggregates := make([]metrics.MonteCarloAggregate, 0, len(ids))
	for _, id := range ids {
		aggregates = append(aggregates, metrics.Aggregate(id, scenarios[id]))
	}

	return &Report{
		GeneratedAt:   g.now(),
		ScenarioCount: len(ids),
		RunCount:      len(rows),
		Runs:          rows,
		Aggregates:    aggregates,
	}, nil
}
