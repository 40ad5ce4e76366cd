// Package settlement implements the SettlementBuilder (C4, §4.4): converting
// a winning Solution plus the Auction it was scored against into an
// EncodedSettlement ready for the verifier. Grounded on spec.md §4.4 for the
// exact field-by-field encoding rules, and on
// original_source/crates/solver/src/solver/http_solver/settlement.rs for the
// overall idea of building a settlement from token-indexed trades plus
// ordered interaction buckets.
package settlement

import (
	"fmt"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// Build encodes solution into a settlement payload. auction supplies the
// full Order records the solution's non-JIT trades reference; wrappedNative
// is the chain's wrapped-native token, used for the native-ETH withdraw
// special case.
func Build(solution types.Solution, auction types.Auction, wrappedNative types.Token) (types.EncodedSettlement, error) {
	orderByUID := make(map[types.OrderUid]types.Order, len(auction.Orders))
	for _, o := range auction.Orders {
		orderByUID[o.Uid] = o
	}

	tokens, tokenIndex := buildTokenVector(solution)

	clearingPrices, err := alignClearingPrices(tokens, solution.ClearingPrices)
	if err != nil {
		return types.EncodedSettlement{}, err
	}

	trades := make([]types.EncodedTrade, len(solution.Trades))
	for i, t := range solution.Trades {
		trade, err := buildTrade(t, orderByUID, tokenIndex)
		if err != nil {
			return types.EncodedSettlement{}, fmt.Errorf("trade %d (order %s): %w", i, t.OrderUid, err)
		}
		trades[i] = trade
	}

	pre, intra, post := buildInteractions(solution, orderByUID, wrappedNative)

	return types.EncodedSettlement{
		Tokens:            tokens,
		ClearingPrices:    clearingPrices,
		Trades:            trades,
		PreInteractions:   pre,
		IntraInteractions: intra,
		PostInteractions:  post,
	}, nil
}
