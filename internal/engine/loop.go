// Package engine implements the AuctionLoop (C2, §4.2): the ticker-driven
// round orchestrator that pulls a fresh Auction out of the order-filter
// pipeline every UpdateInterval and hands it to every registered round
// consumer and to the single-slot cache synchronous readers use. Its shape —
// an immediate run on startup followed by a select loop on a ticker and a
// cancellable context — is the same one the teacher's market scanner uses
// to poll for opportunities, generalized here from "poll an HTTP API for
// markets" to "run the local filter pipeline for orders".
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/internal/pipeline"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// Pipeline produces one Auction per invocation. Satisfied by
// *internal/pipeline.Pipeline; declared here as an interface so the loop can
// be tested with a fake pipeline instead of constructing a real one.
type Pipeline interface {
	Run(ctx context.Context, now time.Time, block uint64) (pipeline.Result, error)
}

// BlockSource supplies the current chain block the pipeline should tag
// orders against (§4.2 — every round reads against a specific block).
type BlockSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// RoundHandler is notified after every successfully published round.
// cmd/autopilot registers a single one that broadcasts to solvers and then
// arbitrates; the dashboard reads the Cache instead of registering.
// Handlers must not block the loop — slow handlers should buffer internally.
type RoundHandler interface {
	HandleAuction(ctx context.Context, auction types.Auction)
}

// AuctionLoop runs the periodic pipeline pass and fans the result out.
type AuctionLoop struct {
	pipeline Pipeline
	blocks   BlockSource
	cache    *AuctionCache
	interval time.Duration
	logger   *slog.Logger

	handlersMu sync.RWMutex
	handlers   []RoundHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an AuctionLoop. The returned loop does not start running
// until Start is called.
func New(pipeline Pipeline, blocks BlockSource, cfg config.AuctionLoopConfig, logger *slog.Logger) *AuctionLoop {
	return &AuctionLoop{
		pipeline: pipeline,
		blocks:   blocks,
		cache:    &AuctionCache{},
		interval: cfg.UpdateInterval,
		logger:   logger.With("component", "auction_loop"),
	}
}

// RegisterHandler adds a round consumer. Must be called before Start to
// avoid racing the first round, though it is safe to call at any time.
func (l *AuctionLoop) RegisterHandler(h RoundHandler) {
	l.handlersMu.Lock()
	defer l.handlersMu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Cache returns the single-slot auction cache for synchronous readers (the
// dashboard's snapshot endpoint, e.g.) that don't want to be a RoundHandler.
func (l *AuctionLoop) Cache() *AuctionCache {
	return l.cache
}

// Start runs the first round synchronously, then launches the background
// loop in its own goroutine and returns. The loop runs until Stop is called
// or ctx is cancelled.
func (l *AuctionLoop) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.runRound(l.ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run()
	}()
}

// Stop cancels the loop and waits for the in-flight round, if any, to finish.
func (l *AuctionLoop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *AuctionLoop) run() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.runRound(l.ctx)
		}
	}
}

// runRound executes exactly one pipeline pass. A failed round is logged and
// skipped — the next tick tries again (§7: a round is never partially
// published; on error, the previous cached auction remains the latest one).
func (l *AuctionLoop) runRound(ctx context.Context) {
	block, err := l.blocks.LatestBlock(ctx)
	if err != nil {
		l.logger.Error("failed to read latest block, skipping round", "error", err)
		return
	}

	result, err := l.pipeline.Run(ctx, time.Now(), block)
	if err != nil {
		l.logger.Error("pipeline round failed, skipping", "block", block, "error", err)
		return
	}

	l.cache.Store(result.Auction)

	l.handlersMu.RLock()
	handlers := append([]RoundHandler(nil), l.handlers...)
	l.handlersMu.RUnlock()

	for _, h := range handlers {
		h.HandleAuction(ctx, result.Auction)
	}

	l.logger.Info("round published", "auction_id", result.Auction.Id, "block", block, "orders", len(result.Auction.Orders))
}
