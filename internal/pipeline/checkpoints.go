package pipeline

import (
	"context"

	"github.com/cow-autopilot/coordinator/pkg/ports"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// filterBannedUsers is checkpoint 1 (§4.1): drop any order whose owner or
// receiver is in the banned set.
func (p *Pipeline) filterBannedUsers(orders []types.Order) ([]types.Order, []ports.OrderEvent) {
	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for _, o := range orders {
		if p.deps.BannedUsers.IsBanned(o.Owner) || p.deps.BannedUsers.IsBanned(o.EffectiveReceiver()) {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "banned user"})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}

// filterInvalidSignatures is checkpoint 2 (§4.1): batch-validate EIP-1271
// signatures; PreSign orders without a recorded presignature event stay in
// the set (tagged PresignaturePending, never dropped here).
func (p *Pipeline) filterInvalidSignatures(ctx context.Context, orders []types.Order) ([]types.Order, []ports.OrderEvent, error) {
	var checks []ports.SignatureCheck
	var checkIdx []int
	for i, o := range orders {
		if o.Signature.Scheme != types.SignatureEip1271 {
			continue
		}
		checks = append(checks, ports.SignatureCheck{
			Signer:         o.Owner,
			OrderDigest:    OrderDigest(o),
			SignatureBytes: o.Signature.Bytes,
		})
		checkIdx = append(checkIdx, i)
	}
	if len(checks) == 0 {
		return orders, nil, nil
	}

	results, err := p.deps.SignatureValidator.Validate(ctx, checks)
	if err != nil {
		return nil, nil, err
	}

	invalid := make(map[int]bool, len(results))
	for j, res := range results {
		if res != nil {
			invalid[checkIdx[j]] = true
		}
	}

	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for i, o := range orders {
		if invalid[i] {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "invalid signature"})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped, nil
}

// filterUnsupportedTokens is checkpoint 3 (§4.1): drop on the first bad
// verdict among sell_token/buy_token.
func (p *Pipeline) filterUnsupportedTokens(ctx context.Context, orders []types.Order) ([]types.Order, []ports.OrderEvent, error) {
	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for _, o := range orders {
		sellQuality, err := p.deps.BadTokenDetector.Detect(ctx, o.SellToken)
		if err != nil {
			return nil, nil, err
		}
		if sellQuality.Bad {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "bad sell token: " + sellQuality.Reason})
			continue
		}
		buyQuality, err := p.deps.BadTokenDetector.Detect(ctx, o.BuyToken)
		if err != nil {
			return nil, nil, err
		}
		if buyQuality.Bad {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "bad buy token: " + buyQuality.Reason})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped, nil
}

// filterBalances is checkpoint 4 (§4.1): sort newest-first, then require
// balance >= 1 for partially-fillable orders or balance >= sell_amount +
// fee_amount for fill-or-kill orders. A per-order balance-fetch error is
// Recoverable (§4.1.2): the order is simply dropped this round.
func (p *Pipeline) filterBalances(ctx context.Context, orders []types.Order) ([]types.Order, []ports.OrderEvent) {
	sortByCreationDateDesc(orders)

	queries := make([]ports.BalanceQuery, len(orders))
	for i, o := range orders {
		queries[i] = ports.BalanceQuery{Owner: o.Owner, Token: o.SellToken, Source: o.SellTokenSource}
	}

	results, err := p.deps.BalanceFetcher.GetBalances(ctx, queries)
	if err != nil {
		// Treat a wholesale fetch failure as every query failing
		// individually; each order is dropped and retried next round.
		results = make([]ports.BalanceResult, len(orders))
		for i := range results {
			results[i] = ports.BalanceResult{Err: err}
		}
	}

	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for i, o := range orders {
		res := results[i]
		if res.Err != nil {
			p.logger.Warn("balance fetch failed, dropping order for this round",
				"order", o.Uid.String(), "owner", o.Owner.String(), "error", res.Err)
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "balance fetch failed"})
			continue
		}

		var required types.Amount
		if o.PartiallyFillable {
			required = types.AmountFromUint64(1)
		} else {
			required, _ = o.SellAmount.Add(o.FeeAmount)
		}
		if res.Amount.Cmp(required) < 0 {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventInvalid, Reason: "insufficient balance"})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}

// filterDust is checkpoint 5 (§4.1): partially-fillable orders whose
// remaining fraction would scale either side to zero are dropped as
// Filtered (not Invalid — they may become fillable again later).
func (p *Pipeline) filterDust(orders []types.Order) ([]types.Order, []ports.OrderEvent) {
	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for _, o := range orders {
		if !o.PartiallyFillable {
			kept = append(kept, o)
			continue
		}
		sellRemaining, _ := o.RemainingFraction()
		if sellRemaining.IsZero() {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventFiltered, Reason: "dust: remaining amount rounds to zero"})
			continue
		}
		// buy-side remaining, scaled proportionally: sellRemaining * buy_amount / sell_amount
		if o.SellAmount.IsZero() {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventFiltered, Reason: "dust: zero sell_amount"})
			continue
		}
		buyRemaining := mulDivAmount(sellRemaining, o.BuyAmount, o.SellAmount)
		if buyRemaining.IsZero() {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventFiltered, Reason: "dust: buy side rounds to zero"})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}

// filterNativePrice is checkpoint 6 (§4.1): orders whose sell or buy token
// has no cached native price are dropped as Filtered; dropped market
// orders' tokens are re-prioritised for the oracle's next fetch (§4.1.1).
func (p *Pipeline) filterNativePrice(orders []types.Order) ([]types.Order, map[types.Token]types.NativePrice, []ports.OrderEvent) {
	tokenSet := map[types.Token]struct{}{}
	for _, o := range orders {
		tokenSet[o.SellToken] = struct{}{}
		tokenSet[o.BuyToken] = struct{}{}
	}
	for _, t := range p.deps.CowAmmRegistry.Tokens() {
		tokenSet[t] = struct{}{}
	}
	tokens := make([]types.Token, 0, len(tokenSet))
	for t := range tokenSet {
		tokens = append(tokens, t)
	}
	cached := p.deps.NativePriceOracle.GetCachedPrices(tokens)

	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	var missingMarketOrders []types.Order
	for _, o := range orders {
		_, sellOk := cached[o.SellToken]
		_, buyOk := cached[o.BuyToken]
		if !sellOk || !buyOk {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventFiltered, Reason: "missing native price"})
			if o.Class == types.ClassMarket {
				missingMarketOrders = append(missingMarketOrders, o)
			}
			continue
		}
		kept = append(kept, o)
	}

	p.reprioritise(missingMarketOrders, kept)
	return kept, cached, dropped
}

// filterMispricedLimit is checkpoint 7 (§4.1): a limit order is dropped if
// it would sell strictly less than the fair market would demand:
// sell_amount * sell_price < buy_amount * buy_price * price_factor.
func (p *Pipeline) filterMispricedLimit(orders []types.Order, prices map[types.Token]types.NativePrice) ([]types.Order, []ports.OrderEvent) {
	const scale = 1_000_000
	factorNum := types.AmountFromUint64(uint64(p.cfg.PriceFactor * scale))
	factorDen := types.AmountFromUint64(scale)

	kept := make([]types.Order, 0, len(orders))
	var dropped []ports.OrderEvent
	for _, o := range orders {
		if o.Class != types.ClassLimit {
			kept = append(kept, o)
			continue
		}
		sellPrice := prices[o.SellToken]
		buyPrice := prices[o.BuyToken]

		// sell_amount * sell_price * factorDen < buy_amount * buy_price * factorNum
		lhsVolume := mulAmountExact(o.SellAmount, sellPrice)
		rhsVolume := mulAmountExact(o.BuyAmount, buyPrice)
		if isMispriced(lhsVolume, rhsVolume, factorNum, factorDen) {
			dropped = append(dropped, ports.OrderEvent{Uid: o.Uid, Kind: ports.EventFiltered, Reason: "mispriced limit order"})
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}

// isMispriced reports whether lhsVolume < rhsVolume * factorNum/factorDen,
// i.e. lhsVolume * factorDen < rhsVolume * factorNum. The volumes are
// already-saturated products of unbounded native prices, so this second
// cross-multiplication can itself overflow; when it does, the order can't be
// confirmed fairly priced, so it's dropped as mispriced rather than crashing
// the round (§7).
func isMispriced(lhsVolume, rhsVolume, factorNum, factorDen types.Amount) bool {
	mispriced, ok := types.CrossLess(lhsVolume, factorDen, rhsVolume, factorNum)
	return !ok || mispriced
}

func mulDivAmount(a, b, c types.Amount) types.Amount {
	if c.IsZero() {
		return types.ZeroAmount()
	}
	return divAmountExact(mulAmountExact(a, b), c)
}
