// Package main provides the simulation server: runs scenarios on request
// and streams per-block metrics to websocket clients, with Prometheus
// metrics at /metrics.
//
// Endpoints:
//   - GET /healthz    liveness probe
//   - GET /metrics    Prometheus scrape endpoint
//   - GET /scenarios  JSON list of scenarios
//   - GET /ws         websocket: ?scenario=2&blocks=1000&seed=42 streams
//     one BlockMetrics frame per block, then a final summary frame
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"flatcoin-lab/internal/config"
	"flatcoin-lab/internal/domain"
	"flatcoin-lab/internal/metrics"
	"flatcoin-lab/internal/observability"
	"flatcoin-lab/internal/scenario"
	"flatcoin-lab/internal/verdict"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	baseConfig scenario.Config
	obs        *observability.Metrics
	logger     *log.Logger
	upgrader   websocket.Upgrader
	maxBlocks  int
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	configPath := flag.String("config", "", "YAML config file (optional)")
	maxBlocks := flag.Int("max-blocks", 500000, "Maximum blocks per requested run")
	flag.Parse()

	logger := log.New(os.Stderr, "[server] ", log.LstdFlags)

	cfg := scenario.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	srv := &Server{
		baseConfig: cfg,
		obs:        observability.NewMetrics(""),
		logger:     logger,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		maxBlocks:  *maxBlocks,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/scenarios", srv.handleScenarios)
	mux.HandleFunc("/ws", srv.handleStream)

	logger.Printf("listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

type scenarioInfo struct {
	ID          uint8  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	var list []scenarioInfo
	for _, id := range domain.AllScenarios() {
		list = append(list, scenarioInfo{
			ID:          uint8(id),
			Name:        id.Name(),
			Description: id.Description(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		s.logger.Printf("encode scenarios: %v", err)
	}
}

// streamFrame is one websocket message: either a block or the final
// summary.
type streamFrame struct {
	Type    string               `json:"type"` // "block" | "summary" | "error"
	Block   *domain.BlockMetrics `json:"block,omitempty"`
	Summary *domain.RunSummary   `json:"summary,omitempty"`
	Verdict string               `json:"verdict,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// handleStream runs a scenario and pushes each block's metrics to the
// client as it is produced.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, blocks, seed, err := parseRunParams(r, s.maxBlocks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	s.obs.ActiveStreams.Inc()
	defer s.obs.ActiveStreams.Dec()
	s.obs.RunsStarted.WithLabelValues(id.Name()).Inc()
	started := time.Now()

	engine, err := scenario.NewEngine(s.baseConfig, seed)
	if err != nil {
		s.obs.RunsFailed.WithLabelValues(id.Name()).Inc()
		s.writeFrame(conn, streamFrame{Type: "error", Error: err.Error()})
		return
	}
	engine.AddAgents(id)

	prices := scenario.GeneratePrices(id, blocks, seed)
	if s.baseConfig.Stochastic {
		scenario.ApplyPriceNoise(prices, s.baseConfig.NoiseSigma, seed)
	}

	for i, price := range prices {
		engine.Step(uint64(i)+1, price)
		s.obs.BlocksSimulated.Inc()

		m := engine.Metrics[len(engine.Metrics)-1]
		if m.LiquidationCount > 0 {
			s.obs.LiquidationsExecuted.Add(float64(m.LiquidationCount))
		}
		if !s.writeFrame(conn, streamFrame{Type: "block", Block: &m}) {
			return // client went away; abandon the run
		}
	}

	summary := metrics.ComputeSummary(engine.Metrics, s.baseConfig.InitialRedemptionPrice)
	summary.ScenarioID = id
	summary.Seed = seed
	v := verdict.Evaluate(engine.Metrics, s.baseConfig.InitialRedemptionPrice, verdict.DefaultThresholds())
	summary.VerdictLabel = string(v.Overall)

	s.obs.BadDebtObserved.Add(summary.TotalBadDebt)
	s.obs.RunsCompleted.WithLabelValues(id.Name(), summary.VerdictLabel).Inc()
	s.obs.RunDuration.WithLabelValues(id.Name()).Observe(time.Since(started).Seconds())

	s.writeFrame(conn, streamFrame{Type: "summary", Summary: &summary, Verdict: summary.VerdictLabel})
}

func (s *Server) writeFrame(conn *websocket.Conn, frame streamFrame) bool {
	if err := conn.WriteJSON(frame); err != nil {
		s.obs.StreamSendErrors.Inc()
		return false
	}
	s.obs.FramesDelivered.Inc()
	return true
}

func parseRunParams(r *http.Request, maxBlocks int) (domain.ScenarioID, int, uint64, error) {
	q := r.URL.Query()

	num, err := strconv.ParseUint(q.Get("scenario"), 10, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("scenario parameter: %w", err)
	}
	id, ok := domain.ScenarioByNumber(uint8(num))
	if !ok {
		return 0, 0, 0, fmt.Errorf("unknown scenario %d", num)
	}

	blocks := 1000
	if v := q.Get("blocks"); v != "" {
		blocks, err = strconv.Atoi(v)
		if err != nil || blocks <= 0 {
			return 0, 0, 0, fmt.Errorf("blocks parameter must be a positive integer")
		}
	}
	if blocks > maxBlocks {
		return 0, 0, 0, fmt.Errorf("blocks %d exceeds maximum %d", blocks, maxBlocks)
	}

	var seed uint64 = 42
	if v := q.Get("seed"); v != "" {
		seed, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("seed parameter: %w", err)
		}
	}

	return id, blocks, seed, nil
}
