// Autopilot is the coordination core entry point: it loads config, wires
// the OrderFilterPipeline, AuctionLoop, solver broadcast, WinnerSelector,
// SettlementBuilder, TradeVerifier, and CompetitionRecorder into one
// running process, starts the observability server, and waits for
// SIGINT/SIGTERM.
//
// Architecture:
//
//	main.go                  — entry point and round orchestration glue
//	internal/pipeline        — OrderFilterPipeline (C1, §4.1)
//	internal/engine          — AuctionLoop (C2, §4.2)
//	internal/solverclient    — broadcasts auctions to configured solvers
//	internal/arbitrator      — WinnerSelector (C3, §4.3)
//	internal/settlement      — SettlementBuilder (C4, §4.4)
//	internal/verifier        — TradeVerifier (C5, §4.5)
//	internal/solverhealth    — chronic non-settlement exclusion (§4.7)
//	internal/recorder        — CompetitionRecorder (C6, §4.6)
//	internal/api             — observability HTTP/WebSocket surface (§6.6)
//
// Order intake/storage, on-chain indexing, and settlement submission are
// Non-goals of this core (§1, §6.1, §6.2); pkg/ports declares those
// boundaries and this binary drives them with its in-memory fakes rather
// than a live implementation, since none is in scope to build.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cow-autopilot/coordinator/internal/api"
	"github.com/cow-autopilot/coordinator/internal/arbitrator"
	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/internal/engine"
	"github.com/cow-autopilot/coordinator/internal/pipeline"
	"github.com/cow-autopilot/coordinator/internal/recorder"
	"github.com/cow-autopilot/coordinator/internal/settlement"
	"github.com/cow-autopilot/coordinator/internal/solverclient"
	"github.com/cow-autopilot/coordinator/internal/solverhealth"
	"github.com/cow-autopilot/coordinator/internal/verifier"
	"github.com/cow-autopilot/coordinator/pkg/ports"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// settlementDeadlineBlocks is how many blocks after a round's publish block
// a winning solution has to settle on-chain before FindNonSettlingSolvers
// considers it overdue. Not config-exposed since spec.md names no tuning
// knob for it, only the "deadline <= current_block" comparison itself.
const settlementDeadlineBlocks = 1

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("COORD_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	wrappedNative, err := types.ParseToken(cfg.Pipeline.WrappedNativeToken)
	if err != nil {
		logger.Error("invalid pipeline.wrapped_native_token", "error", err)
		os.Exit(1)
	}

	rec, err := recorder.New(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open recorder", "error", err)
		os.Exit(1)
	}

	health := solverhealth.NewMonitor(cfg.Solvers, logger)
	arb := arbitrator.New(cfg.Arbitrator, health, logger)
	broadcaster := solverclient.New(cfg.Solvers, logger)

	balances := verifier.NewMappingSlotOverrider(parseSlotMap(cfg.Verifier.BalanceOverrideSlots, logger))
	tradeVerifier, err := verifier.New(cfg.Verifier, balances, wrappedNative, logger)
	if err != nil {
		logger.Error("failed to construct verifier", "error", err)
		os.Exit(1)
	}

	eth, err := ethclient.Dial(cfg.Verifier.NodeURL)
	if err != nil {
		logger.Error("failed to dial chain node for block source", "error", err)
		os.Exit(1)
	}
	blocks := ethBlockSource{eth: eth}

	pl, err := pipeline.New(fakePipelineDeps(), cfg.Pipeline, logger)
	if err != nil {
		logger.Error("failed to construct pipeline", "error", err)
		os.Exit(1)
	}

	loop := engine.New(pl, blocks, cfg.AuctionLoop, logger)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, snapshotProvider{cache: loop.Cache(), health: health}, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "addr", cfg.Dashboard.ListenAddr)
	}

	orc := &roundOrchestrator{
		arbitrator:    arb,
		verifier:      tradeVerifier,
		recorder:      rec,
		health:        health,
		submitter:     &ports.FakeSubmitter{},
		wrappedNative: wrappedNative,
		dryRun:        cfg.DryRun,
		dashboard:     apiServer,
		logger:        logger,
	}
	loop.RegisterHandler(broadcastThenOrchestrate{broadcaster: broadcaster, orc: orc})

	stopHealthRelay := relayHealthSignals(health, apiServer)
	defer close(stopHealthRelay)

	loop.Start(context.Background())

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no settlements will be submitted")
	}
	logger.Info("coordination core started",
		"max_winners", cfg.Arbitrator.MaxWinners,
		"update_interval", cfg.AuctionLoop.UpdateInterval,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	loop.Stop()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseSlotMap(raw map[string]uint64, logger *slog.Logger) map[types.Token]uint64 {
	out := make(map[types.Token]uint64, len(raw))
	for addr, slot := range raw {
		tok, err := types.ParseToken(addr)
		if err != nil {
			logger.Warn("skipping invalid balance_override_slots entry", "address", addr, "error", err)
			continue
		}
		out[tok] = slot
	}
	return out
}

// ethBlockSource adapts *ethclient.Client to engine.BlockSource, sharing the
// same node the verifier simulates against rather than dialing a second
// connection just to poll block height.
type ethBlockSource struct {
	eth *ethclient.Client
}

func (b ethBlockSource) LatestBlock(ctx context.Context) (uint64, error) {
	return b.eth.BlockNumber(ctx)
}

// fakePipelineDeps wires the pipeline's external collaborators to the
// in-memory fakes in pkg/ports: order intake/storage, signature validation,
// bad-token detection, balance fetching, native pricing, banned-user lists,
// and the CoW-AMM registry are all genuine Non-goals of this core (§1), with
// no live implementation in scope to build.
func fakePipelineDeps() pipeline.Deps {
	return pipeline.Deps{
		OrderStore:         &ports.FakeOrderStore{},
		BannedUsers:        &ports.FakeBannedUsers{},
		SignatureValidator: &ports.FakeSignatureValidator{},
		BadTokenDetector:   &ports.FakeBadTokenDetector{},
		BalanceFetcher:     &ports.FakeBalanceFetcher{},
		NativePriceOracle:  ports.NewFakeNativePriceOracle(nil),
		CowAmmRegistry:     &ports.FakeCowAmmRegistry{},
	}
}

// broadcastThenOrchestrate implements engine.RoundHandler: it broadcasts the
// round to solvers itself (rather than using solverclient.Broadcaster's own
// fire-and-forget HandleAuction, which discards the solutions) and hands the
// result to roundOrchestrator for arbitration, verification, submission, and
// recording.
type broadcastThenOrchestrate struct {
	broadcaster *solverclient.Broadcaster
	orc         *roundOrchestrator
}

func (h broadcastThenOrchestrate) HandleAuction(ctx context.Context, auction types.Auction) {
	solutions, err := h.broadcaster.Broadcast(ctx, auction)
	if err != nil {
		h.orc.logger.Error("solver broadcast failed", "auction_id", auction.Id, "error", err)
		return
	}
	h.orc.handleRound(ctx, auction, solutions)
}

// roundOrchestrator runs C3 through C6 for one round's broadcast results.
type roundOrchestrator struct {
	arbitrator    *arbitrator.Arbitrator
	verifier      *verifier.Verifier
	recorder      *recorder.Recorder
	health        *solverhealth.Monitor
	submitter     ports.Submitter
	wrappedNative types.Token
	dryRun        bool
	dashboard     *api.Server
	logger        *slog.Logger
}

func (o *roundOrchestrator) handleRound(ctx context.Context, auction types.Auction, solutions []types.Solution) {
	now := time.Now()
	o.logger.Info("round received solutions", "auction_id", auction.Id, "solutions", len(solutions))

	api.RoundsPublished.Inc()
	o.broadcastEvent(auction.Id, "round", api.NewRoundEvent(auction.Id, auction.Block, len(auction.Orders)))
	for _, s := range solutions {
		api.BidsReceived.WithLabelValues(s.Solver.String()).Inc()
	}

	ranking := o.arbitrator.Arbitrate(solutions, auction, now)
	o.broadcastEvent(auction.Id, "ranking", api.NewRankingEvent(auction.Id, ranking))

	// The round is recorded before its winners settle, so that
	// RecordSettlement finds the winning solution rows to update.
	deadline := auction.Block + settlementDeadlineBlocks
	round := recorder.RoundRecord{Auction: auction, Deadline: deadline, Ranking: ranking}
	if err := o.recorder.RecordRound(ctx, round); err != nil {
		o.logger.Error("failed to record round", "auction_id", auction.Id, "error", err)
	}

	for i := range ranking.Ranked {
		bid := &ranking.Ranked[i]
		if bid.RankType != types.RankWinner {
			continue
		}
		api.WinnersSelected.Inc()
		o.settleWinner(ctx, auction, *bid)
	}
}

func (o *roundOrchestrator) settleWinner(ctx context.Context, auction types.Auction, bid types.RankedBid) {
	encoded, err := settlement.Build(bid.Solution, auction, o.wrappedNative)
	if err != nil {
		o.logger.Error("failed to build settlement", "solution_id", bid.Solution.Id, "error", err)
		return
	}

	orderByUID := make(map[types.OrderUid]types.Order, len(auction.Orders))
	for _, ord := range auction.Orders {
		orderByUID[ord.Uid] = ord
	}

	verified := true
	for _, trade := range bid.Solution.Trades {
		ord, ok := orderByUID[trade.OrderUid]
		if !ok {
			continue // JIT order: no pre-existing Order record to verify against
		}
		query := verifier.PriceQuery{
			SellToken: trade.SellToken,
			BuyToken:  trade.BuyToken,
			Kind:      ord.Kind,
			InAmount:  trade.SellAmount,
		}
		verification := verifier.Verification{
			TraderFrom:       ord.Owner,
			Receiver:         ord.Receiver,
			SellSource:       ord.SellTokenSource,
			BuyDestination:   ord.BuyTokenDestination,
			PreInteractions:  ord.PreInteractions,
			PostInteractions: ord.PostInteractions,
			TxOrigin:         bid.Solution.TxOrigin,
			Solver:           bid.Solution.Solver,
		}
		hasExecutionPlan := bid.Solution.CalldataHex != ""

		report, err := o.verifier.Verify(ctx, encoded, query, verification, hasExecutionPlan)
		evt := api.NewVerificationEvent(auction.Id, bid.Solution.Id, bid.Solution.Solver, report, err)
		o.broadcastEvent(auction.Id, "verification", evt)
		if err != nil {
			api.VerificationResults.WithLabelValues("rejected").Inc()
			o.logger.Warn("trade verification rejected", "solution_id", bid.Solution.Id, "order", trade.OrderUid, "error", err)
			verified = false
			continue
		}
		if report.Verified {
			api.VerificationResults.WithLabelValues("verified").Inc()
		}
	}

	if !verified || o.dryRun {
		return
	}

	calldata, err := hex.DecodeString(strings.TrimPrefix(bid.Solution.CalldataHex, "0x"))
	if err != nil {
		o.logger.Error("malformed settlement calldata", "solution_id", bid.Solution.Id, "error", err)
		return
	}

	txHash, err := o.submitter.Submit(ctx, calldata)
	if err != nil {
		o.logger.Error("settlement submission failed", "solution_id", bid.Solution.Id, "error", err)
		o.health.RecordSettlement(bid.Solution.Solver, false, time.Now())
		return
	}
	o.health.RecordSettlement(bid.Solution.Solver, true, time.Now())
	if err := o.recorder.RecordSettlement(ctx, auction.Id, bid.Solution.Solver, bid.Solution.Id, fmt.Sprintf("0x%x", txHash), auction.Block); err != nil {
		o.logger.Error("failed to record settlement", "solution_id", bid.Solution.Id, "error", err)
	}
}

func (o *roundOrchestrator) broadcastEvent(auctionID uint64, kind string, data interface{}) {
	if o.dashboard == nil {
		return
	}
	o.dashboard.Broadcast(api.DashboardEvent{
		Type:      kind,
		Timestamp: time.Now(),
		AuctionID: auctionID,
		Data:      data,
	})
}

// relayHealthSignals drains solverhealth.Monitor's exclusion channel onto
// the dashboard and the solver-exclusion metric for as long as the returned
// channel stays open; closing it stops the goroutine.
func relayHealthSignals(health *solverhealth.Monitor, dashboard *api.Server) chan struct{} {
	stop := make(chan struct{})
	go func() {
		signals := health.Signals()
		for {
			select {
			case <-stop:
				return
			case sig := <-signals:
				api.SolverExclusions.WithLabelValues(sig.Solver.String()).Inc()
				if dashboard != nil {
					dashboard.Broadcast(api.DashboardEvent{
						Type:      "solver_excluded",
						Timestamp: time.Now(),
						Data:      api.NewSolverExcludedEvent(sig.Solver, sig.Reason, sig.Until),
					})
				}
			}
		}
	}()
	return stop
}

// snapshotProvider adapts *engine.AuctionCache and *solverhealth.Monitor to
// api.SnapshotProvider.
type snapshotProvider struct {
	cache  *engine.AuctionCache
	health *solverhealth.Monitor
}

func (s snapshotProvider) CurrentAuction() (types.Auction, bool) {
	return s.cache.Load()
}

func (s snapshotProvider) ExcludedSolvers(now time.Time) []types.Token {
	return s.health.ExcludedSolvers(now)
}
