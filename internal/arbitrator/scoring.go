package arbitrator

import (
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// nativeScale is the fixed-point denominator NativePrice is expressed over
// (§3 "NativePrice": one unit of a token in native units, scaled by 1e18).
var nativeScale = types.AmountFromUint64(1_000_000_000_000_000_000)

// directionKey identifies a uniform directional clearing price: every trade
// selling sellToken for buyToken must clear at the same ratio within a
// solution, and — per the fairness check — relative to the best
// single-direction solution available for that pair (§4.3 Fairness).
type directionKey struct {
	Sell types.Token
	Buy  types.Token
}

// dirSum is a direction's aggregated executed volumes within one solution.
// Multiple trades on the same (sell, buy) pair are summed before their
// ratio is compared against anything else, so batching two orders in the
// same direction never looks like two conflicting prices (§4.3).
type dirSum struct {
	sell types.Amount
	buy  types.Amount
}

// worseThan reports whether this direction's price is strictly less
// favourable to the seller than other's (less buy-token received per unit
// sold) — buy/sell vs. other's buy/sell, compared by cross-multiplication.
// ok is false when the cross product overflows uint256, in which case the
// two directions can't be compared exactly.
func (d dirSum) worseThan(other dirSum) (worse, ok bool) {
	return types.CrossLess(d.buy, d.sell, other.buy, other.sell)
}

func (d dirSum) equal(other dirSum) bool {
	return crossEqual(d.buy, d.sell, other.buy, other.sell)
}

// scoredBid is a Solution that has passed through Phase 1 scoring: this is
// the unexported "Scored" phase between the Unscored Solution the solver
// submitted and the Ranked bid the arbitrator ultimately publishes (§9).
type scoredBid struct {
	solution types.Solution
	score    types.Amount
	dirSums  map[directionKey]dirSum
	orders   map[types.OrderUid]struct{}
}

// score computes a solution's total surplus, denominated in native-token
// units, and its per-direction aggregated execution — everything the
// fairness filter and greedy selector need, computed once up front.
func score(solution types.Solution, auction types.Auction) scoredBid {
	sb := scoredBid{
		solution: solution,
		score:    types.ZeroAmount(),
		dirSums:  make(map[directionKey]dirSum),
		orders:   make(map[types.OrderUid]struct{}, len(solution.Trades)),
	}

	for _, t := range solution.Trades {
		sb.orders[t.OrderUid] = struct{}{}

		key := directionKey{Sell: t.SellToken, Buy: t.BuyToken}
		sum := sb.dirSums[key]
		sellSum, overflow := sum.sell.Add(t.ExecutedSell)
		if overflow {
			sellSum = sum.sell
		}
		buySum, overflow := sum.buy.Add(t.ExecutedBuy)
		if overflow {
			buySum = sum.buy
		}
		sb.dirSums[key] = dirSum{sell: sellSum, buy: buySum}

		surplus, valuedIn := tradeSurplus(t)
		if surplus.IsZero() {
			continue
		}
		price, ok := auction.Prices[valuedIn]
		if !ok {
			// Data-integrity condition (§7): a trade on a token the pipeline
			// never priced contributes nothing measurable to the score.
			continue
		}
		contribution := divAmountExact(mulAmountExact(surplus, price), nativeScale)
		if sum, overflow := sb.score.Add(contribution); !overflow {
			sb.score = sum
		}
	}

	return sb
}

// tradeSurplus is the extra value a trade delivered beyond what the order's
// own limit price demanded (§4.3.1 Phase 1 — Score and filter). A sell order's
// surplus is extra buy-token received, valued at native_price(buy_token); a
// buy order's surplus is sell-token saved, valued at native_price(sell_token)
// — the two are not interchangeable since they're denominated in different
// tokens. valuedIn reports which token the returned surplus is in.
func tradeSurplus(t types.TradedOrder) (surplus types.Amount, valuedIn types.Token) {
	if t.Side == types.KindBuy {
		if t.BuyAmount.IsZero() {
			return types.ZeroAmount(), t.SellToken
		}
		expectedSell := divAmountExact(mulAmountExact(t.ExecutedBuy, t.SellAmount), t.BuyAmount)
		if t.ExecutedSell.Cmp(expectedSell) >= 0 {
			return types.ZeroAmount(), t.SellToken
		}
		return expectedSell.Sub(t.ExecutedSell), t.SellToken
	}

	if t.SellAmount.IsZero() {
		return types.ZeroAmount(), t.BuyToken
	}
	expectedBuy := divAmountExact(mulAmountExact(t.ExecutedSell, t.BuyAmount), t.SellAmount)
	if t.ExecutedBuy.Cmp(expectedBuy) <= 0 {
		return types.ZeroAmount(), t.BuyToken
	}
	return t.ExecutedBuy.Sub(expectedBuy), t.BuyToken
}
