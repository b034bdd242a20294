package scenario

import (
	"fmt"
	"math/rand"

	"flatcoin-lab/internal/agent"
	"flatcoin-lab/internal/amm"
	"flatcoin-lab/internal/breaker"
	"flatcoin-lab/internal/cdp"
	"flatcoin-lab/internal/controller"
	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/liquidation"
)

// gateSeedOffset decorrelates the engine's activity gating stream from
// price-path and noise streams derived off the same run seed.
const gateSeedOffset = 0xBEEF

// Engine owns all mutable simulation state and drives the per-block loop.
// Agents receive the pool and registry as borrowed handles; no component
// keeps cross-block references into another's internals.
type Engine struct {
	Config Config
	RunID  string

	Pool       *amm.Pool
	Registry   *cdp.Registry
	Controller *controller.Controller
	Liquidator *liquidation.Engine
	Breakers   *breaker.Engine
	Metrics    []domain.BlockMetrics

	// Agents, dispatched in this fixed order within a block.
	Arbers       []*agent.Arbitrageur
	DemandAgents []*agent.DemandAgent
	Miners       []*agent.Miner
	CdpHolders   []*agent.Holder
	LPs          []*agent.LP
	ILAwareLPs   []*agent.ILAwareLP
	Attackers    []*agent.Attacker

	rng             *rand.Rand
	minerCountdowns []uint64
	started         bool
}

// NewEngine validates the config and builds the simulation state.
func NewEngine(config Config, seed uint64) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	// Selecting the graduated mode implies the graduated path is on.
	if config.LiquidationMode == liquidation.ModeGraduated {
		config.Liquidation.Graduated = true
	}

	// Observation history must cover the longest window any component
	// queries.
	maxWindow := config.CDP.TwapWindow
	if config.TwapBreaker.LongWindow > maxWindow {
		maxWindow = config.TwapBreaker.LongWindow
	}

	pool, err := amm.New(config.AMMInitialZEC, config.AMMInitialZAI, config.AMMSwapFee, 4*maxWindow)
	if err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	ctrl, err := controller.New(config.Controller, config.InitialRedemptionPrice, 0)
	if err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	breakers, err := breaker.NewEngine(config.TwapBreaker, config.CascadeBreaker, config.DebtCeiling)
	if err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}

	return &Engine{
		Config:     config,
		Pool:       pool,
		Registry:   cdp.NewRegistry(config.CDP),
		Controller: ctrl,
		Liquidator: liquidation.NewEngine(config.Liquidation),
		Breakers:   breakers,
		rng:        rand.New(rand.NewSource(int64(seed + gateSeedOffset))),
	}, nil
}

// start performs genesis actions: LPs provide, holders open vaults, and
// stochastic miner countdowns are seeded.
func (e *Engine) start() {
	if e.started {
		return
	}
	e.started = true

	for _, lp := range e.LPs {
		lp.Provide(e.Pool)
	}
	for _, lp := range e.ILAwareLPs {
		lp.Provide(e.Pool)
	}
	for _, h := range e.CdpHolders {
		_ = h.OpenVault(e.Registry, e.Pool, 0) // vault safety errors are the agent's problem
	}

	if e.Config.Stochastic && len(e.minerCountdowns) == 0 {
		for range e.Miners {
			e.minerCountdowns = append(e.minerCountdowns, e.randomCountdown())
		}
	}
}

func (e *Engine) randomCountdown() uint64 {
	return uint64(e.rng.Int63n(int64(e.Config.MinerBatchWindow))) + 1
}

// Run executes the simulation over the external price path, one block per
// element starting at block 1.
func (e *Engine) Run(externalPrices []float64) {
	e.start()
	for i, price := range externalPrices {
		e.Step(uint64(i)+1, price)
	}
}

// Step executes a single block in fixed order: observe, agents, fees,
// attackers, liquidations, controller, breakers, metrics.
func (e *Engine) Step(block uint64, externalPrice float64) {
	e.start()

	halted := e.Breakers.Halted(block)
	mintingPaused := e.Breakers.MintingPaused(block)
	redemptionPrice := e.Controller.RedemptionPrice

	// (1) Advance the TWAP accumulator with the price that held from the
	// previous block, before any swap lands in this one.
	e.Pool.Observe(block)

	// (2) Arbitrageurs.
	if !halted {
		for _, arber := range e.Arbers {
			rate := e.Config.ArberActivityRate
			if r := arber.Config.ActivityRate; r > 0 && r < 1 {
				rate = r
			}
			if e.Config.Stochastic && e.rng.Float64() >= rate {
				continue
			}
			arber.Act(e.Pool, externalPrice, block)
		}
	}

	// (3) Demand agents, stochastic jitter gated.
	if !halted {
		for _, demand := range e.DemandAgents {
			if e.Config.Stochastic {
				jitter := int64(e.Config.DemandJitter)
				if e.rng.Int63n(jitter+20) < jitter {
					continue
				}
			}
			demand.Act(e.Pool, redemptionPrice, block)
		}
	}

	// (4) Miners: immediate or stochastic batch selling.
	if !halted {
		if e.Config.Stochastic && len(e.minerCountdowns) > 0 {
			for i, m := range e.Miners {
				m.Receive()
				if e.minerCountdowns[i] > 0 {
					e.minerCountdowns[i]--
				}
				if e.minerCountdowns[i] == 0 {
					sell := m.ZECBalance * m.Config.SellFraction * m.Config.AMMFraction
					m.SellBatch(e.Pool, sell, block)
					e.minerCountdowns[i] = e.randomCountdown()
				}
			}
		} else {
			for _, m := range e.Miners {
				m.Act(e.Pool, block)
			}
		}
	}

	// (5) CDP holders.
	if !halted {
		for _, holder := range e.CdpHolders {
			holder.Act(e.Registry, e.Pool, block)
		}
	}

	// (6) LPs.
	if !halted {
		for _, lp := range e.LPs {
			lp.Act(e.Pool)
		}
		for _, lp := range e.ILAwareLPs {
			lp.Act(e.Pool, externalPrice)
		}
	}

	// (7) Stability fee accrual across all vaults, routed to LPs as
	// reserves; runs only when StabilityFeeToLPs is set.
	if e.Config.StabilityFeeToLPs {
		if feeDelta := e.Registry.AccrueAll(block); feeDelta > 0 {
			e.Pool.InjectPenalty(feeDelta)
		}
	}

	// (8) Attackers act even under a halt: an exchange halt does not stop
	// an adversary who already holds capital.
	for _, attacker := range e.Attackers {
		attacker.Act(e.Pool, block)
	}

	// (9) Liquidation selection and execution for the configured mode.
	var liqResults []liquidation.Result
	switch e.Config.LiquidationMode {
	case liquidation.ModeOracle:
		liqResults = e.Liquidator.RunOracle(e.Registry, e.Pool, block, externalPrice)
	case liquidation.ModeCascadeAMM, liquidation.ModeChallengeResponse:
		// Challenge-response runs the same spot cascade: its results are
		// recorded as cascade_amm and pay no keeper share. The keeper share
		// is paid only by Liquidator.ChallengeLiquidate, which is not
		// called here.
		liqResults = e.Liquidator.RunCascade(e.Registry, e.Pool, block)
	case liquidation.ModeZombieDetector:
		// Observer only: in an oracle-free deployment spot and TWAP come
		// from the same pool, so the detector can flag but never act.
	default:
		liqResults = e.Liquidator.RunTransparent(e.Registry, e.Pool, block)
	}
	liqResults = append(liqResults, e.Liquidator.RunGraduated(e.Registry, e.Pool, block)...)

	liqCount := uint32(len(liqResults))
	e.Breakers.RecordLiquidations(block, liqCount)

	// (10) Controller reads the post-swap spot.
	marketPrice := e.Pool.SpotPrice()
	e.Controller.Update(marketPrice, block)

	// (11) Breakers evaluate after all state mutation.
	e.Breakers.CheckAll(e.Pool, e.Controller.RedemptionPrice, e.Registry.TotalDebt, e.Registry.TotalCollateral, block)

	// (12) Snapshot metrics.
	e.Metrics = append(e.Metrics, e.snapshot(block, externalPrice, liqCount, mintingPaused, halted))
}

// snapshot assembles the BlockMetrics record for a completed block.
func (e *Engine) snapshot(block uint64, externalPrice float64, liqCount uint32, mintingPaused, halted bool) domain.BlockMetrics {
	m := domain.BlockMetrics{
		RunID:             e.RunID,
		Block:             block,
		ExternalPrice:     externalPrice,
		SpotPrice:         e.Pool.SpotPrice(),
		TwapPrice:         e.Pool.TWAP(e.Registry.Config.TwapWindow),
		RedemptionPrice:   e.Controller.RedemptionPrice,
		RedemptionRate:    e.Controller.RedemptionRate,
		ReserveZEC:        e.Pool.ReserveZEC,
		ReserveZAI:        e.Pool.ReserveZAI,
		TotalLPShares:     e.Pool.TotalLPShares,
		TotalDebt:         e.Registry.TotalDebt,
		TotalCollateral:   e.Registry.TotalCollateral,
		VaultCount:        uint64(e.Registry.Count()),
		LiquidationCount:  liqCount,
		BadDebt:           e.Liquidator.TotalBadDebt,
		BreakerFires:      e.Breakers.FiresThisBlock(),
		DebtCeiling:       e.Breakers.Ceiling.CurrentCeiling,
		MintingPaused:     mintingPaused,
		Halted:            halted,
		CumulativeFeesZAI: e.Pool.CumulativeFeesZAI,
		CumulativeILPct:   e.Pool.ImpermanentLoss(e.Config.InitialRedemptionPrice),
	}

	for _, a := range e.Arbers {
		m.ArberZAITotal += a.ZAIBalance
		m.ArberZECTotal += a.ZECBalance
	}

	// Zombie observation and mean collateral ratios over indebted vaults.
	twap := m.TwapPrice
	minRatio := e.Registry.Config.MinRatio
	var twapSum, extSum float64
	var withDebt uint32
	e.Registry.Each(func(v *cdp.Vault) {
		if v.DebtZAI <= 0 {
			return
		}
		withDebt++
		tr := v.CollateralRatio(twap)
		er := v.CollateralRatio(externalPrice)
		twapSum += tr
		extSum += er
		if tr >= minRatio && er < minRatio {
			m.ZombieVaultCount++
			if gap := tr - er; gap > m.MaxZombieGap {
				m.MaxZombieGap = gap
			}
		}
	})
	if withDebt > 0 {
		m.MeanCRTwap = twapSum / float64(withDebt)
		m.MeanCRExt = extSum / float64(withDebt)
	}

	return m
}

// CanOpenVault is the gate agents consult before opening or borrowing.
// A refusal is breaker.ErrBreakerTripped, not a run failure.
func (e *Engine) CanOpenVault(block uint64, newDebt float64) error {
	if e.Breakers.Halted(block) || e.Breakers.MintingPaused(block) {
		return breaker.ErrBreakerTripped
	}
	if !e.Breakers.Ceiling.CanMint(e.Registry.TotalDebt, newDebt) {
		return breaker.ErrBreakerTripped
	}
	return nil
}

// AddAgents attaches the agent population appropriate for a scenario.
// Every scenario gets one arber and one miner; stress-specific populations
// come on top.
func (e *Engine) AddAgents(id domain.ScenarioID) {
	e.Arbers = append(e.Arbers, agent.NewArbitrageur(agent.DefaultArbitrageurConfig()))
	e.Miners = append(e.Miners, agent.NewMiner(agent.DefaultMinerConfig()))

	switch id {
	case domain.ScenarioBankRun:
		cfg := agent.DefaultDemandAgentConfig()
		cfg.Elasticity = 0.02
		cfg.ExitThresholdPct = 3
		cfg.ExitWindowBlocks = 20
		cfg.PanicSellFraction = 0.8
		cfg.InitialZEC = 10000
		e.DemandAgents = append(e.DemandAgents, agent.NewDemandAgent(cfg))

	case domain.ScenarioTwapManipulation:
		e.Attackers = append(e.Attackers, agent.NewAttacker(agent.AttackerConfig{
			CapitalZEC:    5000,
			HoldBlocks:    3,
			AttackAtBlock: 500,
		}))

	case domain.ScenarioMinerCapitulation:
		for i := 0; i < 3; i++ {
			cfg := agent.DefaultMinerConfig()
			cfg.SellFraction = 1
			cfg.AMMFraction = 1
			e.Miners = append(e.Miners, agent.NewMiner(cfg))
		}

	case domain.ScenarioDemandShock:
		cfg := agent.DefaultDemandAgentConfig()
		cfg.Elasticity = 0.10
		cfg.BaseRate = 5
		cfg.InitialZEC = 20000
		e.DemandAgents = append(e.DemandAgents, agent.NewDemandAgent(cfg))

	case domain.ScenarioLiquidityCrisis:
		cfg := agent.DefaultLPConfig()
		cfg.ILThreshold = 0.03 // IL-sensitive LP that may run
		e.LPs = append(e.LPs, agent.NewLP(cfg, "lp_crisis"))
	}
}

// RunStress builds, populates, and runs a complete stress scenario.
func RunStress(id domain.ScenarioID, config Config, blocks int, seed uint64) (*Engine, error) {
	prices := GeneratePrices(id, blocks, seed)
	if config.Stochastic {
		ApplyPriceNoise(prices, config.NoiseSigma, seed)
	}

	engine, err := NewEngine(config, seed)
	if err != nil {
		return nil, err
	}
	engine.AddAgents(id)
	engine.Run(prices)
	return engine, nil
}
