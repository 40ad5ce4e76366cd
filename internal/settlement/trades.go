package settlement

import (
	"fmt"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// buildTrade encodes one TradedOrder against its backing Order, or against a
// synthesized stand-in for a JIT order that never existed in the OrderStore
// (§3 "JIT order").
func buildTrade(t types.TradedOrder, orderByUID map[types.OrderUid]types.Order, tokenIndex map[types.Token]int) (types.EncodedTrade, error) {
	sellIdx, ok := tokenIndex[t.SellToken]
	if !ok {
		return types.EncodedTrade{}, fmt.Errorf("%w: sell token %s", ErrTokenNotInVector, t.SellToken)
	}
	buyIdx, ok := tokenIndex[t.BuyToken]
	if !ok {
		return types.EncodedTrade{}, fmt.Errorf("%w: buy token %s", ErrTokenNotInVector, t.BuyToken)
	}

	var receiver types.Token
	var validTo uint32
	var appData [32]byte
	var feeAmount types.Amount
	var flags types.TradeFlags
	var signature []byte
	var sellAmount, buyAmount types.Amount

	if t.JitOrder {
		// No backing Order: the solver vouches for this trade directly, so
		// the settlement trusts the quantities it already declared and
		// treats it as fill-or-kill, presigned by the JIT owner.
		receiver = t.JitOwner
		validTo = 0
		feeAmount = types.ZeroAmount()
		sellAmount, buyAmount = t.SellAmount, t.BuyAmount
		flags = types.TradeFlags{
			Kind:                t.Side,
			PartiallyFillable:   false,
			SellTokenSource:     types.SourceErc20,
			BuyTokenDestination: types.DestinationErc20,
			SignatureScheme:     types.SignaturePreSign,
		}
	} else {
		order, ok := orderByUID[t.OrderUid]
		if !ok {
			return types.EncodedTrade{}, fmt.Errorf("%w: %s", ErrOrderNotFound, t.OrderUid)
		}
		receiver = order.EffectiveReceiver()
		validTo = order.ValidTo
		appData = order.AppData
		feeAmount = order.FeeAmount
		sellAmount, buyAmount = order.SellAmount, order.BuyAmount
		signature = order.Signature.Bytes
		flags = types.TradeFlags{
			Kind:                order.Kind,
			PartiallyFillable:   order.PartiallyFillable,
			SellTokenSource:     order.SellTokenSource,
			BuyTokenDestination: order.BuyTokenDestination,
			SignatureScheme:     order.Signature.Scheme,
		}
	}

	if violatesLimitPrice(sellAmount, buyAmount, t.ExecutedSell, t.ExecutedBuy) {
		return types.EncodedTrade{}, fmt.Errorf("%w: sell_amount=%s buy_amount=%s executed_sell=%s executed_buy=%s",
			ErrLimitPriceViolation, sellAmount, buyAmount, t.ExecutedSell, t.ExecutedBuy)
	}

	return types.EncodedTrade{
		SellTokenIndex: sellIdx,
		BuyTokenIndex:  buyIdx,
		Receiver:       receiver,
		SellAmount:     sellAmount,
		BuyAmount:      buyAmount,
		ValidTo:        validTo,
		AppData:        appData,
		FeeAmount:      feeAmount,
		Flags:          flags,
		ExecutedAmount: executedAmount(t),
		Signature:      signature,
	}, nil
}

// executedAmount is the user-side executed quantity: sell units for a sell
// order, buy units for a buy order (§4.4).
func executedAmount(t types.TradedOrder) types.Amount {
	if t.Side == types.KindBuy {
		return t.ExecutedBuy
	}
	return t.ExecutedSell
}

// violatesLimitPrice reports whether executedSell/executedBuy fail the
// order's own limit ratio: sell_amount * executed_buy must be >=
// buy_amount * executed_sell (§4.4). A cross-product overflow can't be
// verified as satisfying the limit, so it counts as a violation rather than
// crashing the round (§7).
func violatesLimitPrice(sellAmount, buyAmount, executedSell, executedBuy types.Amount) bool {
	violates, ok := types.CrossLess(sellAmount, executedSell, buyAmount, executedBuy)
	return !ok || violates
}
