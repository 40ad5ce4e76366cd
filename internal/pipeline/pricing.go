package pipeline

import (
	"context"
	"sort"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// reprioritise implements §4.1.1's fetch-priority hint: tokens belonging to
// market orders that got dropped for lack of a native price are pushed to
// the front of the oracle's fetch queue, youngest order first, ties broken
// by how many surviving orders reference the token (more usage, more
// urgent). This never blocks the round — the dropped orders are retried
// next tick once the oracle catches up.
func (p *Pipeline) reprioritise(missingMarketOrders, surviving []types.Order) {
	if len(missingMarketOrders) == 0 {
		return
	}

	usage := map[types.Token]int{}
	for _, o := range surviving {
		usage[o.SellToken]++
		usage[o.BuyToken]++
	}

	sort.SliceStable(missingMarketOrders, func(i, j int) bool {
		return missingMarketOrders[i].CreatedAt.After(missingMarketOrders[j].CreatedAt)
	})

	seen := map[types.Token]bool{}
	rank := map[types.Token]int{} // index of the youngest order using the token
	tokens := make([]types.Token, 0, 2*len(missingMarketOrders))
	addToken := func(t types.Token, r int) {
		if !seen[t] {
			seen[t] = true
			rank[t] = r
			tokens = append(tokens, t)
		}
	}
	for i, o := range missingMarketOrders {
		addToken(o.SellToken, i)
		addToken(o.BuyToken, i)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		if rank[tokens[i]] != rank[tokens[j]] {
			return rank[tokens[i]] < rank[tokens[j]]
		}
		return usage[tokens[i]] > usage[tokens[j]]
	})

	p.deps.NativePriceOracle.ReplaceHighPriority(tokens)
}

// ensureWrappedNativePrice adds the wrapped-native token's price to prices
// when it is missing, by a synchronous EstimateNativePrice call made on the
// spot rather than deferring to next round's prioritisation pass. If that
// estimate fails, the error is logged and the auction carries no
// wrapped-native price.
func (p *Pipeline) ensureWrappedNativePrice(ctx context.Context, prices map[types.Token]types.NativePrice) {
	if _, ok := prices[p.wrappedNative]; ok {
		return
	}
	estimate, err := p.deps.NativePriceOracle.EstimateNativePrice(ctx, p.wrappedNative)
	if err != nil {
		p.logger.Error("failed to obtain wrapped native token price", "token", p.wrappedNative.String(), "error", err)
		return
	}
	prices[p.wrappedNative] = types.AmountFromUint64(uint64(estimate))
}
