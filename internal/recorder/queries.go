package recorder

import (
	"context"
	"fmt"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// LoadByID returns the full record for one auction, for audit or rewards
// (§4.6). ok is false if no auction with that id was ever recorded.
func (r *Recorder) LoadByID(ctx context.Context, auctionID uint64) (record Record, ok bool, err error) {
	var row auctionRow
	result := r.db.WithContext(ctx).
		Preload("Solutions.Trades").
		Preload("Solutions.JitOrderMetadata").
		Preload("ReferenceScores").
		First(&row, "id = ?", auctionID)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("load auction %d: %w", auctionID, result.Error)
	}
	record, err = fromAuctionRow(row)
	return record, true, err
}

// LoadByTxHash returns the full record of the round whose winning solution
// settled in the given transaction (§4.6).
func (r *Recorder) LoadByTxHash(ctx context.Context, txHash string) (record Record, ok bool, err error) {
	var solution solutionRow
	if err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&solution).Error; err != nil {
		if isNotFound(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("load solution by tx hash %q: %w", txHash, err)
	}
	return r.LoadByID(ctx, solution.AuctionID)
}

func fromAuctionRow(row auctionRow) (Record, error) {
	orderUIDs, err := unmarshalOrderUIDs(row.OrderUIDsJSON)
	if err != nil {
		return Record{}, err
	}
	prices, err := unmarshalPrices(row.PricesJSON)
	if err != nil {
		return Record{}, err
	}

	solutions := make([]SolutionRecord, len(row.Solutions))
	for i, s := range row.Solutions {
		sr, err := fromSolutionRow(s)
		if err != nil {
			return Record{}, err
		}
		solutions[i] = sr
	}

	referenceScores := make(map[types.Token]types.Amount, len(row.ReferenceScores))
	for _, rs := range row.ReferenceScores {
		solver, err := tokenFromHex(rs.Solver)
		if err != nil {
			return Record{}, fmt.Errorf("reference score solver %q: %w", rs.Solver, err)
		}
		score, err := types.ParseAmount(rs.Score)
		if err != nil {
			return Record{}, fmt.Errorf("reference score amount %q: %w", rs.Score, err)
		}
		referenceScores[solver] = score
	}

	return Record{
		AuctionID:       row.ID,
		Block:           row.Block,
		Deadline:        row.Deadline,
		OrderUIDs:       orderUIDs,
		Prices:          prices,
		Solutions:       solutions,
		ReferenceScores: referenceScores,
	}, nil
}

func fromSolutionRow(row solutionRow) (SolutionRecord, error) {
	solver, err := tokenFromHex(row.Solver)
	if err != nil {
		return SolutionRecord{}, fmt.Errorf("solution solver %q: %w", row.Solver, err)
	}
	score, err := types.ParseAmount(row.Score)
	if err != nil {
		return SolutionRecord{}, fmt.Errorf("solution score %q: %w", row.Score, err)
	}
	clearingPrices, err := unmarshalPrices(row.ClearingPricesJSON)
	if err != nil {
		return SolutionRecord{}, err
	}

	trades := make([]types.TradedOrder, len(row.Trades))
	for i, t := range row.Trades {
		trade, err := fromTradeRow(t)
		if err != nil {
			return SolutionRecord{}, err
		}
		trades[i] = trade
	}

	jit := make([]JitOrderMetadata, len(row.JitOrderMetadata))
	for i, j := range row.JitOrderMetadata {
		m, err := fromJitOrderMetadataRow(j)
		if err != nil {
			return SolutionRecord{}, err
		}
		jit[i] = m
	}

	return SolutionRecord{
		ID:               row.SolutionID,
		Solver:           solver,
		IsWinner:         row.IsWinner,
		FilteredOut:      row.FilteredOut,
		Score:            score,
		ClearingPrices:   clearingPrices,
		TxHash:           row.TxHash,
		SettledAtBlock:   row.SettledAtBlock,
		Trades:           trades,
		JitOrderMetadata: jit,
	}, nil
}

func fromTradeRow(row tradeRow) (types.TradedOrder, error) {
	uid, err := orderUidFromHex(row.OrderUID)
	if err != nil {
		return types.TradedOrder{}, err
	}
	sellToken, err := tokenFromHex(row.SellToken)
	if err != nil {
		return types.TradedOrder{}, err
	}
	buyToken, err := tokenFromHex(row.BuyToken)
	if err != nil {
		return types.TradedOrder{}, err
	}
	sellAmount, err := types.ParseAmount(row.SellAmount)
	if err != nil {
		return types.TradedOrder{}, err
	}
	buyAmount, err := types.ParseAmount(row.BuyAmount)
	if err != nil {
		return types.TradedOrder{}, err
	}
	executedSell, err := types.ParseAmount(row.ExecutedSell)
	if err != nil {
		return types.TradedOrder{}, err
	}
	executedBuy, err := types.ParseAmount(row.ExecutedBuy)
	if err != nil {
		return types.TradedOrder{}, err
	}
	var jitOwner types.Token
	if row.JitOrder {
		jitOwner, err = tokenFromHex(row.JitOwner)
		if err != nil {
			return types.TradedOrder{}, err
		}
	}
	return types.TradedOrder{
		OrderUid:     uid,
		Side:         types.OrderKind(row.Side),
		SellToken:    sellToken,
		SellAmount:   sellAmount,
		BuyToken:     buyToken,
		BuyAmount:    buyAmount,
		ExecutedSell: executedSell,
		ExecutedBuy:  executedBuy,
		JitOrder:     row.JitOrder,
		JitOwner:     jitOwner,
	}, nil
}

func fromJitOrderMetadataRow(row jitOrderMetadataRow) (JitOrderMetadata, error) {
	uid, err := orderUidFromHex(row.OrderUID)
	if err != nil {
		return JitOrderMetadata{}, err
	}
	sellToken, err := tokenFromHex(row.SellToken)
	if err != nil {
		return JitOrderMetadata{}, err
	}
	buyToken, err := tokenFromHex(row.BuyToken)
	if err != nil {
		return JitOrderMetadata{}, err
	}
	sellAmount, err := types.ParseAmount(row.SellAmount)
	if err != nil {
		return JitOrderMetadata{}, err
	}
	buyAmount, err := types.ParseAmount(row.BuyAmount)
	if err != nil {
		return JitOrderMetadata{}, err
	}
	return JitOrderMetadata{
		OrderUid:   uid,
		Side:       types.OrderKind(row.Side),
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
	}, nil
}

// windowAuctionIDs returns the ids of the last n auctions whose deadline
// has already passed relative to currentBlock, most recent first — the
// "last N already-deadlined auctions" window both solver-health queries
// share (§4.6).
func (r *Recorder) windowAuctionIDs(ctx context.Context, lastN int, currentBlock uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&auctionRow{}).
		Where("deadline <= ?", currentBlock).
		Order("id desc").
		Limit(lastN).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("window auction ids: %w", err)
	}
	return ids, nil
}

type solverWinTally struct {
	wins    int
	settled int
}

// winTalliesInWindow counts, per solver, how many winning solutions they
// had in auctionIDs and how many of those were ever observed settling
// on-chain (non-empty tx_hash).
func (r *Recorder) winTalliesInWindow(ctx context.Context, auctionIDs []uint64) (map[string]solverWinTally, error) {
	if len(auctionIDs) == 0 {
		return map[string]solverWinTally{}, nil
	}
	var rows []solutionRow
	err := r.db.WithContext(ctx).
		Where("auction_id IN ? AND is_winner = ?", auctionIDs, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("winning solutions in window: %w", err)
	}

	tallies := make(map[string]solverWinTally)
	for _, row := range rows {
		t := tallies[row.Solver]
		t.wins++
		if row.TxHash != "" {
			t.settled++
		}
		tallies[row.Solver] = t
	}
	return tallies, nil
}

// FindNonSettlingSolvers returns solvers that won at least one of the last
// n already-deadlined auctions but never had a single winning solution
// observed settling on-chain in that window (§4.6).
func (r *Recorder) FindNonSettlingSolvers(ctx context.Context, lastN int, currentBlock uint64) ([]types.Token, error) {
	auctionIDs, err := r.windowAuctionIDs(ctx, lastN, currentBlock)
	if err != nil {
		return nil, err
	}
	tallies, err := r.winTalliesInWindow(ctx, auctionIDs)
	if err != nil {
		return nil, err
	}

	var solvers []types.Token
	for hex, t := range tallies {
		if t.settled == 0 {
			solver, err := tokenFromHex(hex)
			if err != nil {
				return nil, fmt.Errorf("non-settling solver %q: %w", hex, err)
			}
			solvers = append(solvers, solver)
		}
	}
	return solvers, nil
}

// FindLowSettlingSolvers returns solvers with at least minWins wins in the
// window whose settlement rate is below 1 - maxFailureRate (§4.6).
func (r *Recorder) FindLowSettlingSolvers(ctx context.Context, lastN int, currentBlock uint64, maxFailureRate float64, minWins int) ([]types.Token, error) {
	auctionIDs, err := r.windowAuctionIDs(ctx, lastN, currentBlock)
	if err != nil {
		return nil, err
	}
	tallies, err := r.winTalliesInWindow(ctx, auctionIDs)
	if err != nil {
		return nil, err
	}

	minRate := 1 - maxFailureRate
	var solvers []types.Token
	for hex, t := range tallies {
		if t.wins < minWins {
			continue
		}
		rate := float64(t.settled) / float64(t.wins)
		if rate < minRate {
			solver, err := tokenFromHex(hex)
			if err != nil {
				return nil, fmt.Errorf("low-settling solver %q: %w", hex, err)
			}
			solvers = append(solvers, solver)
		}
	}
	return solvers, nil
}

// FetchInFlightOrders returns order uids belonging to winning solutions
// whose auction deadline has not yet passed and which have no observed
// on-chain execution — used by C1 to avoid re-including orders under
// active submission (§4.6).
func (r *Recorder) FetchInFlightOrders(ctx context.Context, currentBlock uint64) ([]types.OrderUid, error) {
	var auctionIDs []uint64
	err := r.db.WithContext(ctx).Model(&auctionRow{}).
		Where("deadline > ?", currentBlock).
		Pluck("id", &auctionIDs).Error
	if err != nil {
		return nil, fmt.Errorf("in-flight auction ids: %w", err)
	}
	if len(auctionIDs) == 0 {
		return nil, nil
	}

	var solutionRowIDs []uint64
	err = r.db.WithContext(ctx).Model(&solutionRow{}).
		Where("auction_id IN ? AND is_winner = ? AND tx_hash = ?", auctionIDs, true, "").
		Pluck("row_id", &solutionRowIDs).Error
	if err != nil {
		return nil, fmt.Errorf("in-flight solution row ids: %w", err)
	}
	if len(solutionRowIDs) == 0 {
		return nil, nil
	}

	var orderUIDHexes []string
	err = r.db.WithContext(ctx).Model(&tradeRow{}).
		Where("solution_row_id IN ?", solutionRowIDs).
		Distinct().
		Pluck("order_uid", &orderUIDHexes).Error
	if err != nil {
		return nil, fmt.Errorf("in-flight order uids: %w", err)
	}

	out := make([]types.OrderUid, 0, len(orderUIDHexes))
	for _, h := range orderUIDHexes {
		uid, err := orderUidFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("in-flight order uid %q: %w", h, err)
		}
		out = append(out, uid)
	}
	return out, nil
}
