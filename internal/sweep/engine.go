// Package sweep runs parameter grids and Monte Carlo batches over the
// stress scenarios. Each cell is an independent run owning its entire
// state, so cells execute concurrently on a bounded worker pool.
package sweep

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/scenario"
)

// Param is one swept parameter with its candidate values.
type Param struct {
	Name   string
	Values []float64
}

// Result is the evaluation of one parameter combination.
type Result struct {
	Params       []ParamValue
	Scores       []ScenarioScore
	OverallScore float64
}

// ParamValue binds a parameter name to a concrete value.
type ParamValue struct {
	Name  string
	Value float64
}

// ScenarioScore is the score of one scenario under a combination.
type ScenarioScore struct {
	Scenario domain.ScenarioID
	Score    float64
}

// Engine evaluates parameter combinations across scenarios.
type Engine struct {
	Blocks      int
	Seed        uint64
	TargetPrice float64
	// Workers bounds concurrent runs; zero means GOMAXPROCS.
	Workers int
}

// NewEngine creates a sweep engine.
func NewEngine(blocks int, seed uint64, targetPrice float64) *Engine {
	return &Engine{Blocks: blocks, Seed: seed, TargetPrice: targetPrice}
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Score grades a completed run; higher is better. Penalizes peg
// deviation, bad debt, halts, and liquidation intensity.
func (e *Engine) Score(blocks []domain.BlockMetrics) float64 {
	if len(blocks) == 0 {
		return negInf
	}
	n := float64(len(blocks))

	var meanDev float64
	for _, m := range blocks {
		d := (m.SpotPrice - e.TargetPrice) / e.TargetPrice
		if d < 0 {
			d = -d
		}
		meanDev += d
	}
	meanDev /= n

	maxDebt := 1.0
	var haltBlocks, totalLiqs float64
	for _, m := range blocks {
		if m.TotalDebt > maxDebt {
			maxDebt = m.TotalDebt
		}
		if m.Halted {
			haltBlocks++
		}
		totalLiqs += float64(m.LiquidationCount)
	}
	badDebtRatio := blocks[len(blocks)-1].BadDebt / maxDebt

	return -(0.4*meanDev + 0.3*badDebtRatio + 0.2*haltBlocks/n + 0.1*totalLiqs/n)
}

const negInf = -1e308

// ApplyParams overrides named parameters on a config. Unknown names are
// ignored so older sweep files keep working.
func ApplyParams(config *scenario.Config, params []ParamValue) {
	for _, p := range params {
		switch p.Name {
		case "min_ratio":
			config.CDP.MinRatio = p.Value
		case "swap_fee":
			config.AMMSwapFee = p.Value
		case "liquidation_penalty":
			config.CDP.LiquidationPenalty = p.Value
		case "stability_fee_rate":
			config.CDP.StabilityFeeRate = p.Value
		case "debt_floor":
			config.CDP.DebtFloor = p.Value
		case "twap_window":
			config.CDP.TwapWindow = uint64(p.Value)
		case "twap_breaker_threshold":
			config.TwapBreaker.MaxChangePct = p.Value
		case "cascade_max_liqs":
			config.CascadeBreaker.MaxLiquidationsInWindow = uint32(p.Value)
		case "max_liquidations_per_block":
			config.Liquidation.MaxPerBlock = uint32(p.Value)
		}
	}
}

// CartesianProduct expands parameter grids into all combinations.
func CartesianProduct(params []Param) [][]ParamValue {
	if len(params) == 0 {
		return [][]ParamValue{{}}
	}

	rest := CartesianProduct(params[1:])
	var result [][]ParamValue
	for _, v := range params[0].Values {
		for _, combo := range rest {
			next := make([]ParamValue, 0, len(combo)+1)
			next = append(next, ParamValue{Name: params[0].Name, Value: v})
			next = append(next, combo...)
			result = append(result, next)
		}
	}
	return result
}

// RunGrid evaluates every combination against every scenario. Cells run
// concurrently; results come back in combination order.
func (e *Engine) RunGrid(params []Param, scenarios []domain.ScenarioID) ([]Result, error) {
	combos := CartesianProduct(params)
	results := make([]Result, len(combos))
	errs := make([]error, len(combos))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers())

	for i, combo := range combos {
		wg.Add(1)
		go func(i int, combo []ParamValue) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = e.evaluate(combo, scenarios, e.Seed, 1)
		}(i, combo)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// RunMonteCarlo evaluates combinations over multiple derived seeds.
func (e *Engine) RunMonteCarlo(combos [][]ParamValue, scenarios []domain.ScenarioID, iterations int) ([]Result, error) {
	results := make([]Result, len(combos))
	errs := make([]error, len(combos))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers())

	for i, combo := range combos {
		wg.Add(1)
		go func(i int, combo []ParamValue) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = e.evaluate(combo, scenarios, e.Seed, iterations)
		}(i, combo)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// evaluate scores one combination across scenarios and iterations.
func (e *Engine) evaluate(combo []ParamValue, scenarios []domain.ScenarioID, baseSeed uint64, iterations int) (Result, error) {
	totals := make(map[domain.ScenarioID]float64, len(scenarios))
	var total float64
	var count int

	for iter := 0; iter < iterations; iter++ {
		seed := baseSeed + uint64(iter)
		for _, sid := range scenarios {
			config := scenario.DefaultConfig()
			ApplyParams(&config, combo)
			engine, err := scenario.RunStress(sid, config, e.Blocks, seed)
			if err != nil {
				return Result{}, fmt.Errorf("sweep cell %v scenario %s: %w", combo, sid.Name(), err)
			}
			s := e.Score(engine.Metrics)
			totals[sid] += s
			total += s
			count++
		}
	}

	scores := make([]ScenarioScore, 0, len(scenarios))
	for _, sid := range scenarios {
		scores = append(scores, ScenarioScore{
			Scenario: sid,
			Score:    totals[sid] / float64(iterations),
		})
	}

	return Result{
		Params:       combo,
		Scores:       scores,
		OverallScore: total / float64(count),
	}, nil
}

// SortResults orders results best-first.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OverallScore > results[j].OverallScore
	})
}

// RefineParams builds a finer grid centered on the best result: five
// values spanning roughly +-30% around each best value.
func RefineParams(results []Result, original []Param) []Param {
	if len(results) == 0 {
		return original
	}

	best := results[0]
	refined := make([]Param, 0, len(original))
	for _, param := range original {
		bestVal := param.Values[len(param.Values)/2]
		for _, pv := range best.Params {
			if pv.Name == param.Name {
				bestVal = pv.Value
				break
			}
		}

		delta := bestVal * 0.15
		values := make([]float64, 0, 5)
		for i := -2; i <= 2; i++ {
			v := bestVal + delta*float64(i)
			if v < 0.001 {
				v = 0.001
			}
			values = append(values, v)
		}
		refined = append(refined, Param{Name: param.Name, Values: values})
	}
	return refined
}

// DefaultCoarseParams is the stage-one grid of the staged sweep.
func DefaultCoarseParams() []Param {
	return []Param{
		{Name: "min_ratio", Values: []float64{1.2, 1.5, 2.0}},
		{Name: "swap_fee", Values: []float64{0.001, 0.003, 0.01}},
		{Name: "liquidation_penalty", Values: []float64{0.05, 0.13, 0.20}},
		{Name: "stability_fee_rate", Values: []float64{0.01, 0.02, 0.05}},
	}
}

// RunStaged runs the four-stage sweep: coarse grid, fine grid around the
// winner, Monte Carlo over the leaders, final validation.
func (e *Engine) RunStaged(coarse []Param, topNMC, mcIterations, topNFinal, finalIterations int) ([]Result, error) {
	coarseScenarios := []domain.ScenarioID{
		domain.ScenarioSteadyState,
		domain.ScenarioBlackThursday,
		domain.ScenarioSustainedBear,
		domain.ScenarioOracleComparison,
	}

	coarseResults, err := e.RunGrid(coarse, coarseScenarios)
	if err != nil {
		return nil, err
	}
	SortResults(coarseResults)

	fineParams := RefineParams(coarseResults, coarse)
	all := domain.AllScenarios()
	fineResults, err := e.RunGrid(fineParams, all)
	if err != nil {
		return nil, err
	}
	SortResults(fineResults)

	topMC := topCombos(fineResults, topNMC)
	mcResults, err := e.RunMonteCarlo(topMC, all, mcIterations)
	if err != nil {
		return nil, err
	}
	SortResults(mcResults)

	topFinal := topCombos(mcResults, topNFinal)
	finalResults, err := e.RunMonteCarlo(topFinal, all, finalIterations)
	if err != nil {
		return nil, err
	}
	SortResults(finalResults)
	return finalResults, nil
}

func topCombos(results []Result, n int) [][]ParamValue {
	if n > len(results) {
		n = len(results)
	}
	combos := make([][]ParamValue, 0, n)
	for _, r := range results[:n] {
		combos = append(combos, r.Params)
	}
	return combos
}
