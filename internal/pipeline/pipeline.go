// Package pipeline implements the OrderFilterPipeline (C1, §4.1): the
// periodic checkpoint sequence that turns a raw order-store snapshot into a
// self-consistent Auction. Each checkpoint is pure — (orders, context) ->
// (kept, dropped) — and checkpoints run in a fixed order because later ones
// assume earlier invariants, mirroring the filter->rank shape of
// internal/market/scanner.go in the teacher, generalized from market
// filtering to order filtering.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/ports"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// Deps bundles the external collaborators the pipeline reads from (§4.1).
type Deps struct {
	OrderStore         ports.OrderStore
	BannedUsers        ports.BannedUsers
	SignatureValidator ports.SignatureValidator
	BadTokenDetector   ports.BadTokenDetector
	BalanceFetcher     ports.BalanceFetcher
	NativePriceOracle  ports.NativePriceOracle
	CowAmmRegistry     ports.CowAmmRegistry
}

// Pipeline runs the ordered checkpoint sequence and materialises Auctions.
type Pipeline struct {
	deps   Deps
	cfg    config.PipelineConfig
	logger *slog.Logger

	nextAuctionID atomic.Uint64
	wrappedNative types.Token
}

// New constructs a Pipeline. wrappedNative is parsed once at startup from
// config so every round avoids re-parsing the address string.
func New(deps Deps, cfg config.PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	wrapped, err := types.ParseToken(cfg.WrappedNativeToken)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Pipeline{
		deps:          deps,
		cfg:           cfg,
		logger:        logger.With("component", "pipeline"),
		wrappedNative: wrapped,
	}, nil
}

// Result bundles the materialised Auction with bookkeeping events for
// metrics (§4.1).
type Result struct {
	Auction Auction
	Events  []ports.OrderEvent
}

// Auction is an alias kept local so callers don't need to import
// pkg/types just to read the pipeline's output type in this package's docs.
type Auction = types.Auction

// Run executes one full pipeline pass: load the snapshot, apply the seven
// checkpoints in order, guarantee the wrapped-native price, apply fee
// policies, and materialise a fresh Auction.
//
// Any infrastructure error loading the snapshot is Round-fatal (§7): the
// round is skipped and retried on the next tick; a round is never partially
// published.
func (p *Pipeline) Run(ctx context.Context, now time.Time, block uint64) (Result, error) {
	minValidTo := uint32(now.Add(p.cfg.MinOrderValidityPeriod).Unix())

	snapshot, err := p.deps.OrderStore.SolvableOrders(ctx, minValidTo)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: load snapshot: %w", err)
	}

	if err := p.deps.CowAmmRegistry.Refresh(ctx); err != nil {
		// §4.1.3: soft failure, round continues with the previous snapshot.
		p.logger.Warn("cow-amm registry refresh failed", "error", err)
	}

	var events []ports.OrderEvent
	orders := snapshot.Orders

	orders, dropped := p.filterBannedUsers(orders)
	events = append(events, dropped...)

	orders, dropped, err = p.filterInvalidSignatures(ctx, orders)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: signature checkpoint: %w", err)
	}
	events = append(events, dropped...)

	orders, dropped, err = p.filterUnsupportedTokens(ctx, orders)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: bad-token checkpoint: %w", err)
	}
	events = append(events, dropped...)

	orders, dropped = p.filterBalances(ctx, orders)
	events = append(events, dropped...)

	orders, dropped = p.filterDust(orders)
	events = append(events, dropped...)

	var prices map[types.Token]types.NativePrice
	orders, prices, dropped = p.filterNativePrice(orders)
	events = append(events, dropped...)

	orders, dropped = p.filterMispricedLimit(orders, prices)
	events = append(events, dropped...)

	p.ensureWrappedNativePrice(ctx, prices)

	owners := surplusCapturingOwners(orders)
	applyFeePolicies(orders, snapshot.Quotes)

	auction := types.Auction{
		Id:                        p.nextAuctionID.Add(1),
		Block:                     block,
		Orders:                    orders,
		Prices:                    prices,
		SurplusCapturingJitOwners: owners,
	}

	return Result{Auction: auction, Events: events}, nil
}

func surplusCapturingOwners(orders []types.Order) map[types.Token]struct{} {
	// JIT orders aren't produced by this snapshot (they're introduced by
	// solvers, §3). This always returns an empty set, whatever the orders
	// carry, so no JIT order captures surplus in any round the pipeline
	// builds.
	return map[types.Token]struct{}{}
}

// sortByCreationDateDesc orders newest-first, as required before the
// balance filter (§4.1 checkpoint 4): "prefer newer orders when a trader's
// balance is contested".
func sortByCreationDateDesc(orders []types.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
