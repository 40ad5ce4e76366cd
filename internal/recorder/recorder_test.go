package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRecorder gives each test its own named in-memory sqlite database —
// shared cache mode is required for gorm's connection pool to see the same
// database across connections, but the name must be unique per test or
// tests would silently share state (and collide on auction/solution ids).
func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	r, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func uid(b byte) types.OrderUid {
	var u types.OrderUid
	u[0] = b
	return u
}

func tkn(b byte) types.Token {
	return types.Token{b}
}

func winningRound(auctionID, block, deadline uint64, solver types.Token, solutionID uint64, orderUID types.OrderUid) RoundRecord {
	trade := types.TradedOrder{
		OrderUid:     orderUID,
		Side:         types.KindSell,
		SellToken:    tkn(10),
		BuyToken:     tkn(11),
		SellAmount:   types.AmountFromUint64(1000),
		BuyAmount:    types.AmountFromUint64(900),
		ExecutedSell: types.AmountFromUint64(1000),
		ExecutedBuy:  types.AmountFromUint64(910),
	}
	solution := types.Solution{
		Id:             solutionID,
		Solver:         solver,
		Trades:         []types.TradedOrder{trade},
		ClearingPrices: map[types.Token]types.Amount{tkn(10): types.AmountFromUint64(1), tkn(11): types.AmountFromUint64(1)},
	}
	ranked := types.RankedBid{Solution: solution, Score: types.AmountFromUint64(50), RankType: types.RankWinner}

	round := RoundRecord{
		Auction: types.Auction{
			Id:     auctionID,
			Block:  block,
			Orders: []types.Order{{Uid: orderUID}},
			Prices: map[types.Token]types.Amount{tkn(10): types.AmountFromUint64(1)},
		},
		Deadline: deadline,
		Ranking: types.Ranking{
			Ranked:          []types.RankedBid{ranked},
			ReferenceScores: map[types.Token]types.Amount{solver: types.AmountFromUint64(45)},
		},
	}
	return round
}

func TestRecordRoundAndLoadByID(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	round := winningRound(1, 90, 100, tkn(1), 1, uid(0x01))
	if err := r.RecordRound(ctx, round); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}

	record, ok, err := r.LoadByID(ctx, 1)
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if !ok {
		t.Fatalf("expected auction 1 to be found")
	}
	if record.Block != 90 || record.Deadline != 100 {
		t.Fatalf("unexpected auction fields: %+v", record)
	}
	if len(record.Solutions) != 1 {
		t.Fatalf("expected 1 solution, got %d", len(record.Solutions))
	}
	sol := record.Solutions[0]
	if !sol.IsWinner {
		t.Fatalf("expected solution to be recorded as winner")
	}
	if len(sol.Trades) != 1 || sol.Trades[0].OrderUid != uid(0x01) {
		t.Fatalf("unexpected trades: %+v", sol.Trades)
	}
	if score, ok := record.ReferenceScores[tkn(1)]; !ok || score.String() != "45" {
		t.Fatalf("unexpected reference score: %+v", record.ReferenceScores)
	}
}

func TestLoadByIDMissing(t *testing.T) {
	r := newTestRecorder(t)
	_, ok, err := r.LoadByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if ok {
		t.Fatalf("expected auction 999 not to be found")
	}
}

func TestLoadByTxHash(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()

	round := winningRound(1, 90, 100, tkn(1), 7, uid(0x01))
	if err := r.RecordRound(ctx, round); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}
	if err := r.RecordSettlement(ctx, 1, tkn(1), 7, "0xdead", 95); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}

	record, ok, err := r.LoadByTxHash(ctx, "0xdead")
	if err != nil {
		t.Fatalf("LoadByTxHash: %v", err)
	}
	if !ok || record.AuctionID != 1 {
		t.Fatalf("expected to find auction 1 by tx hash, got %+v ok=%v", record, ok)
	}
}

func TestFindNonSettlingSolvers(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	solver := tkn(2)

	if err := r.RecordRound(ctx, winningRound(1, 90, 100, solver, 1, uid(0x01))); err != nil {
		t.Fatalf("RecordRound 1: %v", err)
	}
	if err := r.RecordRound(ctx, winningRound(2, 190, 200, solver, 2, uid(0x02))); err != nil {
		t.Fatalf("RecordRound 2: %v", err)
	}

	solvers, err := r.FindNonSettlingSolvers(ctx, 2, 250)
	if err != nil {
		t.Fatalf("FindNonSettlingSolvers: %v", err)
	}
	if len(solvers) != 1 || solvers[0] != solver {
		t.Fatalf("expected solver to be flagged non-settling, got %+v", solvers)
	}

	// Once one win settles, the solver is no longer flagged as never-settling.
	if err := r.RecordSettlement(ctx, 1, solver, 1, "0xabc", 95); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	solvers, err = r.FindNonSettlingSolvers(ctx, 2, 250)
	if err != nil {
		t.Fatalf("FindNonSettlingSolvers (after settlement): %v", err)
	}
	if len(solvers) != 0 {
		t.Fatalf("expected no non-settling solvers after one settlement, got %+v", solvers)
	}
}

func TestFindLowSettlingSolvers(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	solver := tkn(3)

	if err := r.RecordRound(ctx, winningRound(1, 90, 100, solver, 1, uid(0x01))); err != nil {
		t.Fatalf("RecordRound 1: %v", err)
	}
	if err := r.RecordRound(ctx, winningRound(2, 190, 200, solver, 2, uid(0x02))); err != nil {
		t.Fatalf("RecordRound 2: %v", err)
	}
	if err := r.RecordSettlement(ctx, 1, solver, 1, "0xabc", 95); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}

	// 1 of 2 wins settled: 50% settlement rate.
	solvers, err := r.FindLowSettlingSolvers(ctx, 2, 250, 0.4, 2) // requires >= 60% settlement rate
	if err != nil {
		t.Fatalf("FindLowSettlingSolvers: %v", err)
	}
	if len(solvers) != 1 || solvers[0] != solver {
		t.Fatalf("expected solver flagged low-settling at 50%% vs 60%% threshold, got %+v", solvers)
	}

	solvers, err = r.FindLowSettlingSolvers(ctx, 2, 250, 0.6, 2) // requires >= 40% settlement rate
	if err != nil {
		t.Fatalf("FindLowSettlingSolvers: %v", err)
	}
	if len(solvers) != 0 {
		t.Fatalf("expected solver not flagged at 50%% vs 40%% threshold, got %+v", solvers)
	}

	solvers, err = r.FindLowSettlingSolvers(ctx, 2, 250, 0.4, 3) // min_wins not met
	if err != nil {
		t.Fatalf("FindLowSettlingSolvers: %v", err)
	}
	if len(solvers) != 0 {
		t.Fatalf("expected no solvers when min_wins isn't met, got %+v", solvers)
	}
}

func TestFetchInFlightOrders(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	solver := tkn(4)

	// Auction 1 has already deadlined: its orders are not in flight.
	if err := r.RecordRound(ctx, winningRound(1, 90, 100, solver, 1, uid(0x01))); err != nil {
		t.Fatalf("RecordRound 1: %v", err)
	}
	// Auction 2's deadline hasn't passed, and its winner hasn't settled.
	if err := r.RecordRound(ctx, winningRound(2, 290, 300, solver, 2, uid(0x02))); err != nil {
		t.Fatalf("RecordRound 2: %v", err)
	}

	orders, err := r.FetchInFlightOrders(ctx, 250)
	if err != nil {
		t.Fatalf("FetchInFlightOrders: %v", err)
	}
	if len(orders) != 1 || orders[0] != uid(0x02) {
		t.Fatalf("expected only auction 2's order in flight, got %+v", orders)
	}

	if err := r.RecordSettlement(ctx, 2, solver, 2, "0xdef", 295); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	orders, err = r.FetchInFlightOrders(ctx, 250)
	if err != nil {
		t.Fatalf("FetchInFlightOrders (after settlement): %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no in-flight orders once settled, got %+v", orders)
	}
}

// TestRecordRoundSolverLocalIDCollision exercises the common case of two
// different solvers both numbering their solutions starting at 0: the
// solver-local id alone is not a valid row key, so this must not hit a
// duplicate-primary-key error and roll back the round.
func TestRecordRoundSolverLocalIDCollision(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	solverA, solverB := tkn(5), tkn(6)

	makeRanked := func(solver types.Token, orderUID types.OrderUid, rankType types.RankType, score uint64) types.RankedBid {
		return types.RankedBid{
			Solution: types.Solution{
				Id:     0, // both solvers number their first solution 0
				Solver: solver,
				Trades: []types.TradedOrder{{
					OrderUid:     orderUID,
					Side:         types.KindSell,
					SellToken:    tkn(10),
					BuyToken:     tkn(11),
					SellAmount:   types.AmountFromUint64(1000),
					BuyAmount:    types.AmountFromUint64(900),
					ExecutedSell: types.AmountFromUint64(1000),
					ExecutedBuy:  types.AmountFromUint64(910),
				}},
				ClearingPrices: map[types.Token]types.Amount{tkn(10): types.AmountFromUint64(1), tkn(11): types.AmountFromUint64(1)},
			},
			Score:    types.AmountFromUint64(score),
			RankType: rankType,
		}
	}

	round1 := RoundRecord{
		Auction: types.Auction{Id: 1, Block: 90, Orders: []types.Order{{Uid: uid(0x01)}, {Uid: uid(0x02)}}},
		Deadline: 100,
		Ranking: types.Ranking{
			Ranked: []types.RankedBid{
				makeRanked(solverA, uid(0x01), types.RankWinner, 50),
				makeRanked(solverB, uid(0x02), types.RankNonWinner, 40),
			},
		},
	}
	if err := r.RecordRound(ctx, round1); err != nil {
		t.Fatalf("RecordRound with colliding solver-local ids: %v", err)
	}

	// The same local id 0 recurring in a later round must not collide either.
	round2 := RoundRecord{
		Auction: types.Auction{Id: 2, Block: 190, Orders: []types.Order{{Uid: uid(0x03)}}},
		Deadline: 200,
		Ranking: types.Ranking{
			Ranked: []types.RankedBid{
				makeRanked(solverA, uid(0x03), types.RankWinner, 60),
			},
		},
	}
	if err := r.RecordRound(ctx, round2); err != nil {
		t.Fatalf("RecordRound reusing a solver-local id from an earlier round: %v", err)
	}

	record, ok, err := r.LoadByID(ctx, 1)
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	if !ok || len(record.Solutions) != 2 {
		t.Fatalf("expected both colliding-id solutions to be recorded, got %+v", record)
	}

	if err := r.RecordSettlement(ctx, 1, solverA, 0, "0xaaa", 95); err != nil {
		t.Fatalf("RecordSettlement for solverA: %v", err)
	}

	record, _, err = r.LoadByID(ctx, 1)
	if err != nil {
		t.Fatalf("LoadByID after settlement: %v", err)
	}
	for _, sol := range record.Solutions {
		if sol.Solver == solverA && sol.TxHash != "0xaaa" {
			t.Fatalf("expected solverA's solution to record the settlement, got %+v", sol)
		}
		if sol.Solver == solverB && sol.TxHash != "" {
			t.Fatalf("settlement for solverA leaked onto solverB's row: %+v", sol)
		}
	}
}
