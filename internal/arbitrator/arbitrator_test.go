package arbitrator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testArbitrator(maxWinners int) *Arbitrator {
	return New(config.ArbitratorConfig{MaxWinners: maxWinners}, nil, testLogger())
}

func tok(b byte) types.Token {
	return types.Token{b}
}

func amt(n uint64) types.Amount {
	return types.AmountFromUint64(n)
}

func uid(b byte) types.OrderUid {
	var u types.OrderUid
	u[0] = b
	return u
}

// e15 scales a raw test amount the same way winner_selection.rs's tests do
// ("adding decimal units to avoid the math rounding it down to 0").
func e15(n uint64) types.Amount {
	return mulAmountExact(amt(n), amt(1_000_000_000_000_000))
}

func trade(orderUid types.OrderUid, sellTok, buyTok types.Token, sellAmt, buyAmt, execSell, execBuy types.Amount) types.TradedOrder {
	return types.TradedOrder{
		OrderUid:     orderUid,
		SellToken:    sellTok,
		SellAmount:   sellAmt,
		BuyToken:     buyTok,
		BuyAmount:    buyAmt,
		ExecutedSell: execSell,
		ExecutedBuy:  execBuy,
	}
}

// nativeUnit is a native price of exactly 1.0, expressed in the §3
// NativePrice fixed-point scale (1e18) — test fixtures use it for every
// token so score comparisons reduce to raw surplus amounts, matching the
// uniform price: 1 convention winner_selection.rs's own tests use.
var nativeUnit = types.AmountFromUint64(1_000_000_000_000_000_000)

func uniformAuction(tokens ...types.Token) types.Auction {
	prices := make(map[types.Token]types.NativePrice, len(tokens))
	for _, t := range tokens {
		prices[t] = nativeUnit
	}
	return types.Auction{Id: 1, Block: 1, Prices: prices}
}

func hasWinner(r types.Ranking, solutionID uint64) bool {
	for _, b := range r.Ranked {
		if b.Solution.Id == solutionID && b.RankType == types.RankWinner {
			return true
		}
	}
	return false
}

func isRanked(r types.Ranking, solutionID uint64) bool {
	for _, b := range r.Ranked {
		if b.Solution.Id == solutionID {
			return true
		}
	}
	return false
}

// single_bid: only one solution, it wins with reference score 0.
func TestArbitrateSingleBid(t *testing.T) {
	a, b := tok(1), tok(2)
	s := types.Solution{
		Id:     1,
		Solver: tok(10),
		Trades: []types.TradedOrder{
			trade(uid(1), a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	ranking := testArbitrator(10).Arbitrate([]types.Solution{s}, uniformAuction(a, b), time.Unix(0, 0))

	if !hasWinner(ranking, 1) {
		t.Fatal("expected the only solution to win")
	}
	if got := ranking.ReferenceScores[tok(10)]; !got.IsZero() {
		t.Fatalf("expected reference score 0, got %s", got)
	}
}

// compatible_bids: two solutions on disjoint token pairs both win; each
// solver's reference score is the other solution's score.
func TestArbitrateCompatibleBidsBothWin(t *testing.T) {
	a, b, c, d := tok(1), tok(2), tok(3), tok(4)
	best := types.Solution{
		Id:     1,
		Solver: tok(10),
		Trades: []types.TradedOrder{
			trade(uid(1), a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
			trade(uid(2), c, d, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	compatible := types.Solution{
		Id:     2,
		Solver: tok(11),
		Trades: []types.TradedOrder{
			trade(uid(3), a, c, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	ranking := testArbitrator(10).Arbitrate([]types.Solution{best, compatible}, uniformAuction(a, b, c, d), time.Unix(0, 0))

	if !hasWinner(ranking, 1) || !hasWinner(ranking, 2) {
		t.Fatal("expected both compatible solutions to win")
	}
	if got := ranking.ReferenceScores[tok(10)]; got.Cmp(e15(100)) != 0 {
		t.Fatalf("expected best-batch solver reference score 100e15, got %s", got)
	}
	if got := ranking.ReferenceScores[tok(11)]; got.Cmp(e15(200)) != 0 {
		t.Fatalf("expected compatible-batch solver reference score 200e15, got %s", got)
	}
}

// incompatible_bids: two solutions both trade the same order; the
// higher-scoring one wins, the other is fair but loses, and its score
// still counts toward the winner's reference score.
func TestArbitrateIncompatibleBidsOnlyBestWins(t *testing.T) {
	a, b, c, d := tok(1), tok(2), tok(3), tok(4)
	shared := uid(1)
	best := types.Solution{
		Id:     1,
		Solver: tok(10),
		Trades: []types.TradedOrder{
			trade(shared, a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
			trade(uid(2), c, d, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	compatible := types.Solution{
		Id:     2,
		Solver: tok(11),
		Trades: []types.TradedOrder{
			trade(shared, a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	ranking := testArbitrator(10).Arbitrate([]types.Solution{best, compatible}, uniformAuction(a, b, c, d), time.Unix(0, 0))

	if !hasWinner(ranking, 1) {
		t.Fatal("expected best batch to win")
	}
	if hasWinner(ranking, 2) {
		t.Fatal("expected compatible batch to lose (shares an order with the winner)")
	}
	if !isRanked(ranking, 2) {
		t.Fatal("expected compatible batch to still be fair (ranked, just not a winner)")
	}
	if got := ranking.ReferenceScores[tok(10)]; got.Cmp(e15(100)) != 0 {
		t.Fatalf("expected reference score 100e15, got %s", got)
	}
}

// fairness_filtering: a multi-direction solution that shortchanges an order
// relative to a single-direction baseline is filtered out entirely.
func TestArbitrateFairnessFiltering(t *testing.T) {
	a, b, c, d := tok(1), tok(2), tok(3), tok(4)
	order1 := uid(1)
	unfair := types.Solution{
		Id:     1,
		Solver: tok(10),
		Trades: []types.TradedOrder{
			trade(order1, a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
			trade(uid(2), c, d, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	filtering := types.Solution{
		Id:     2,
		Solver: tok(11),
		Trades: []types.TradedOrder{
			trade(order1, a, b, e15(1000), e15(1000), e15(1000), e15(1150)),
		},
	}
	ranking := testArbitrator(10).Arbitrate([]types.Solution{unfair, filtering}, uniformAuction(a, b, c, d), time.Unix(0, 0))

	if isRanked(ranking, 1) {
		t.Fatal("expected the unfair multi-direction batch to be filtered out")
	}
	if !hasWinner(ranking, 2) {
		t.Fatal("expected the single-direction batch to win")
	}
	if len(ranking.FilteredOut) != 1 || ranking.FilteredOut[0].Solution.Id != 1 {
		t.Fatalf("expected exactly solution 1 filtered out, got %+v", ranking.FilteredOut)
	}
}

// aggregation_on_token_pair: two orders on the same direction aggregated
// into one solution are never unfair, even against a better single-order
// price on the same pair — the conflict over the shared order is settled by
// winner selection, where the higher-scoring aggregated batch wins.
func TestArbitrateAggregationOnSameDirectionIsFair(t *testing.T) {
	a, b := tok(1), tok(2)
	order1 := uid(1)
	aggregated := types.Solution{
		Id:     1,
		Solver: tok(10),
		Trades: []types.TradedOrder{
			trade(order1, a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
			trade(uid(2), a, b, e15(1000), e15(1000), e15(1000), e15(1100)),
		},
	}
	incompatible := types.Solution{
		Id:     2,
		Solver: tok(11),
		Trades: []types.TradedOrder{
			trade(order1, a, b, e15(1000), e15(1000), e15(1000), e15(1150)),
		},
	}
	ranking := testArbitrator(10).Arbitrate([]types.Solution{aggregated, incompatible}, uniformAuction(a, b), time.Unix(0, 0))

	if !isRanked(ranking, 1) || !isRanked(ranking, 2) {
		t.Fatal("expected both solutions to be fair")
	}
	if !hasWinner(ranking, 1) {
		t.Fatal("expected the higher-scoring aggregated batch to win")
	}
	if hasWinner(ranking, 2) {
		t.Fatal("expected the incompatible batch to lose (shares order1 at a different price)")
	}
	if got := ranking.ReferenceScores[tok(10)]; got.Cmp(e15(150)) != 0 {
		t.Fatalf("expected reference score 150e15, got %s", got)
	}
}
