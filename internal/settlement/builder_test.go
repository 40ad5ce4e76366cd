package settlement

import (
	"errors"
	"testing"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

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

func baseOrder(u types.OrderUid, sell, buy types.Token, sellAmount, buyAmount types.Amount) types.Order {
	return types.Order{
		Uid:                 u,
		Owner:               tok(200),
		SellToken:           sell,
		BuyToken:            buy,
		SellAmount:          sellAmount,
		BuyAmount:           buyAmount,
		FeeAmount:           amt(1),
		ValidTo:             1000,
		Kind:                types.KindSell,
		SellTokenSource:     types.SourceErc20,
		BuyTokenDestination: types.DestinationErc20,
		Signature:           types.Signature{Scheme: types.SignatureEip712, Bytes: []byte{0xaa}},
	}
}

func TestBuildTokenVectorOrderedByFirstAppearance(t *testing.T) {
	a, b, c := tok(1), tok(2), tok(3)
	orderA := baseOrder(uid(1), a, b, amt(100), amt(100))
	orderB := baseOrder(uid(2), b, c, amt(100), amt(100))

	solution := types.Solution{
		Trades: []types.TradedOrder{
			{OrderUid: uid(1), Side: types.KindSell, SellToken: a, SellAmount: amt(100), BuyToken: b, BuyAmount: amt(100), ExecutedSell: amt(100), ExecutedBuy: amt(100)},
			{OrderUid: uid(2), Side: types.KindSell, SellToken: b, SellAmount: amt(100), BuyToken: c, BuyAmount: amt(100), ExecutedSell: amt(100), ExecutedBuy: amt(100)},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1), b: amt(1), c: amt(1)},
	}
	auction := types.Auction{Orders: []types.Order{orderA, orderB}}

	encoded, err := Build(solution, auction, tok(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.Token{a, b, c}
	if len(encoded.Tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(encoded.Tokens))
	}
	for i, tk := range want {
		if encoded.Tokens[i] != tk {
			t.Fatalf("token %d: expected %s, got %s", i, tk, encoded.Tokens[i])
		}
	}
	if encoded.Trades[0].SellTokenIndex != 0 || encoded.Trades[0].BuyTokenIndex != 1 {
		t.Fatalf("unexpected token indices for trade 0: %+v", encoded.Trades[0])
	}
	if encoded.Trades[1].SellTokenIndex != 1 || encoded.Trades[1].BuyTokenIndex != 2 {
		t.Fatalf("unexpected token indices for trade 1: %+v", encoded.Trades[1])
	}
}

func TestBuildRejectsMissingClearingPrice(t *testing.T) {
	a, b := tok(1), tok(2)
	order := baseOrder(uid(1), a, b, amt(100), amt(100))
	solution := types.Solution{
		Trades: []types.TradedOrder{
			{OrderUid: uid(1), Side: types.KindSell, SellToken: a, SellAmount: amt(100), BuyToken: b, BuyAmount: amt(100), ExecutedSell: amt(100), ExecutedBuy: amt(100)},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1)}, // missing b
	}
	auction := types.Auction{Orders: []types.Order{order}}

	_, err := Build(solution, auction, tok(9))
	if !errors.Is(err, ErrMissingClearingPrice) {
		t.Fatalf("expected ErrMissingClearingPrice, got %v", err)
	}
}

func TestBuildRejectsLimitPriceViolation(t *testing.T) {
	a, b := tok(1), tok(2)
	order := baseOrder(uid(1), a, b, amt(100), amt(100))
	solution := types.Solution{
		Trades: []types.TradedOrder{
			// executed_buy (90) is less than what the limit price demands
			// for a full 100-unit sell: sell_amount*executed_buy (9000) <
			// buy_amount*executed_sell (10000).
			{OrderUid: uid(1), Side: types.KindSell, SellToken: a, SellAmount: amt(100), BuyToken: b, BuyAmount: amt(100), ExecutedSell: amt(100), ExecutedBuy: amt(90)},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1), b: amt(1)},
	}
	auction := types.Auction{Orders: []types.Order{order}}

	_, err := Build(solution, auction, tok(9))
	if !errors.Is(err, ErrLimitPriceViolation) {
		t.Fatalf("expected ErrLimitPriceViolation, got %v", err)
	}
}

func TestBuildExecutedAmountIsUserSideQuantity(t *testing.T) {
	a, b := tok(1), tok(2)
	sellOrder := baseOrder(uid(1), a, b, amt(100), amt(100))
	buyOrder := baseOrder(uid(2), a, b, amt(100), amt(100))
	buyOrder.Kind = types.KindBuy

	solution := types.Solution{
		Trades: []types.TradedOrder{
			{OrderUid: uid(1), Side: types.KindSell, SellToken: a, SellAmount: amt(100), BuyToken: b, BuyAmount: amt(100), ExecutedSell: amt(100), ExecutedBuy: amt(110)},
			{OrderUid: uid(2), Side: types.KindBuy, SellToken: a, SellAmount: amt(100), BuyToken: b, BuyAmount: amt(100), ExecutedSell: amt(95), ExecutedBuy: amt(100)},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1), b: amt(1)},
	}
	auction := types.Auction{Orders: []types.Order{sellOrder, buyOrder}}

	encoded, err := Build(solution, auction, tok(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := encoded.Trades[0].ExecutedAmount; got.Cmp(amt(100)) != 0 {
		t.Fatalf("sell order: expected executed_amount 100 (sell units), got %s", got)
	}
	if got := encoded.Trades[1].ExecutedAmount; got.Cmp(amt(100)) != 0 {
		t.Fatalf("buy order: expected executed_amount 100 (buy units), got %s", got)
	}
}

func TestBuildAppendsWithdrawForNativeBuyToken(t *testing.T) {
	sellTok := tok(1)
	wrappedNative := tok(9)
	order := baseOrder(uid(1), sellTok, types.NativeToken, amt(100), amt(50))

	solution := types.Solution{
		Trades: []types.TradedOrder{
			{OrderUid: uid(1), Side: types.KindSell, SellToken: sellTok, SellAmount: amt(100), BuyToken: types.NativeToken, BuyAmount: amt(50), ExecutedSell: amt(100), ExecutedBuy: amt(55)},
		},
		ClearingPrices: map[types.Token]types.Amount{sellTok: amt(1), types.NativeToken: amt(1)},
	}
	auction := types.Auction{Orders: []types.Order{order}}

	encoded, err := Build(solution, auction, wrappedNative)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(encoded.IntraInteractions) != 1 {
		t.Fatalf("expected exactly one intra-interaction (the withdraw), got %d", len(encoded.IntraInteractions))
	}
	withdraw := encoded.IntraInteractions[0]
	if withdraw.Target != wrappedNative {
		t.Fatalf("expected withdraw targeted at wrapped-native contract, got %s", withdraw.Target)
	}
	if len(withdraw.CallData) != 4+32 {
		t.Fatalf("expected 4-byte selector + 32-byte amount, got %d bytes", len(withdraw.CallData))
	}
}

func TestBuildJitOrderSynthesizesTrade(t *testing.T) {
	a, b := tok(1), tok(2)
	jitOwner := tok(77)
	solution := types.Solution{
		Trades: []types.TradedOrder{
			{
				OrderUid:     uid(5),
				Side:         types.KindSell,
				SellToken:    a,
				SellAmount:   amt(10),
				BuyToken:     b,
				BuyAmount:    amt(10),
				ExecutedSell: amt(10),
				ExecutedBuy:  amt(10),
				JitOrder:     true,
				JitOwner:     jitOwner,
			},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1), b: amt(1)},
	}
	auction := types.Auction{} // no backing orders at all

	encoded, err := Build(solution, auction, tok(9))
	if err != nil {
		t.Fatalf("unexpected error for JIT-only solution: %v", err)
	}
	if encoded.Trades[0].Receiver != jitOwner {
		t.Fatalf("expected JIT trade receiver to be the JIT owner, got %s", encoded.Trades[0].Receiver)
	}
	if encoded.Trades[0].Flags.SignatureScheme != types.SignaturePreSign {
		t.Fatalf("expected JIT trade to use presign scheme, got %v", encoded.Trades[0].Flags.SignatureScheme)
	}
}

func TestBuildRejectsUnknownOrder(t *testing.T) {
	a, b := tok(1), tok(2)
	solution := types.Solution{
		Trades: []types.TradedOrder{
			{OrderUid: uid(1), Side: types.KindSell, SellToken: a, SellAmount: amt(10), BuyToken: b, BuyAmount: amt(10), ExecutedSell: amt(10), ExecutedBuy: amt(10)},
		},
		ClearingPrices: map[types.Token]types.Amount{a: amt(1), b: amt(1)},
	}
	auction := types.Auction{} // order 1 isn't in the auction snapshot

	_, err := Build(solution, auction, tok(9))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
