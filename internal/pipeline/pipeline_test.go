package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/ports"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MinOrderValidityPeriod: time.Minute,
		PriceFactor:            0.9,
		WrappedNativeToken:     "0x0000000000000000000000000000000000000001",
	}
}

func baseOrder(uid byte, owner types.Token, sell, buy types.Token, createdAt time.Time) types.Order {
	var u types.OrderUid
	u[0] = uid
	return types.Order{
		Uid:               u,
		Owner:             owner,
		SellToken:         sell,
		BuyToken:          buy,
		SellAmount:        types.AmountFromUint64(1_000),
		BuyAmount:         types.AmountFromUint64(900),
		FeeAmount:         types.AmountFromUint64(10),
		ValidTo:           uint32(createdAt.Add(time.Hour).Unix()),
		Kind:              types.KindSell,
		PartiallyFillable: false,
		Class:             types.ClassMarket,
		Signature:         types.Signature{Scheme: types.SignatureEip712},
		CreatedAt:         createdAt,
	}
}

func newTestPipeline(t *testing.T, orders []types.Order, balances map[types.Token]map[types.Token]types.Amount, prices map[types.Token]types.NativePrice) (*Pipeline, *ports.FakeOrderStore) {
	t.Helper()
	store := &ports.FakeOrderStore{Snapshot: ports.SolvableOrdersSnapshot{Orders: orders}}
	deps := Deps{
		OrderStore:         store,
		BannedUsers:        &ports.FakeBannedUsers{},
		SignatureValidator: &ports.FakeSignatureValidator{},
		BadTokenDetector:   &ports.FakeBadTokenDetector{},
		BalanceFetcher:     &ports.FakeBalanceFetcher{Balances: balances},
		NativePriceOracle:  ports.NewFakeNativePriceOracle(prices),
		CowAmmRegistry:     &ports.FakeCowAmmRegistry{},
	}
	p, err := New(deps, testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, store
}

func TestRunIsIdempotentOnEmptySnapshot(t *testing.T) {
	wrapped, _ := types.ParseToken("0x0000000000000000000000000000000000000001")
	prices := map[types.Token]types.NativePrice{wrapped: types.AmountFromUint64(1)}
	p, _ := newTestPipeline(t, nil, nil, prices)

	now := time.Unix(2_000_000_000, 0)
	res1, err := p.Run(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	res2, err := p.Run(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res1.Auction.Orders) != 0 || len(res2.Auction.Orders) != 0 {
		t.Fatalf("expected empty auctions, got %d and %d orders", len(res1.Auction.Orders), len(res2.Auction.Orders))
	}
	if res1.Auction.Id == res2.Auction.Id {
		t.Fatalf("expected distinct auction ids across rounds, got %d twice", res1.Auction.Id)
	}
}

func TestRunGuaranteesWrappedNativePriceEvenWhenUncached(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil, map[types.Token]types.NativePrice{})
	// With no orders, the cached-price lookup covers no tokens, so the
	// wrapped native token is missing from it and Run has to fetch its price
	// through the synchronous EstimateNativePrice call. The fake oracle
	// starts empty, so SetPrice gives that call a price to return.
	oracle := p.deps.NativePriceOracle.(*ports.FakeNativePriceOracle)
	oracle.SetPrice(p.wrappedNative, types.AmountFromUint64(42))

	now := time.Unix(2_000_000_000, 0)
	res, err := p.Run(context.Background(), now, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := res.Auction.Prices[p.wrappedNative]; !ok {
		t.Fatalf("expected wrapped native token price to be present in auction")
	}
}

func TestRunDropsOrderWithInsufficientBalance(t *testing.T) {
	owner := types.Token{9}
	sell := types.Token{1}
	buy := types.Token{2}
	wrapped, _ := types.ParseToken("0x0000000000000000000000000000000000000001")
	now := time.Unix(2_000_000_000, 0)
	orders := []types.Order{baseOrder(1, owner, sell, buy, now.Add(-time.Minute))}

	prices := map[types.Token]types.NativePrice{
		sell:    types.AmountFromUint64(1),
		buy:     types.AmountFromUint64(1),
		wrapped: types.AmountFromUint64(1),
	}
	balances := map[types.Token]map[types.Token]types.Amount{
		owner: {sell: types.AmountFromUint64(5)}, // far below sell_amount+fee_amount
	}

	p, _ := newTestPipeline(t, orders, balances, prices)
	res, err := p.Run(context.Background(), now, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Auction.Orders) != 0 {
		t.Fatalf("expected order to be dropped for insufficient balance, got %d orders", len(res.Auction.Orders))
	}
	foundInvalid := false
	for _, ev := range res.Events {
		if ev.Kind == ports.EventInvalid && ev.Reason == "insufficient balance" {
			foundInvalid = true
		}
	}
	if !foundInvalid {
		t.Fatalf("expected an insufficient-balance event, got %+v", res.Events)
	}
}

func TestRunDropsBannedOwner(t *testing.T) {
	owner := types.Token{9}
	sell := types.Token{1}
	buy := types.Token{2}
	now := time.Unix(2_000_000_000, 0)
	orders := []types.Order{baseOrder(1, owner, sell, buy, now.Add(-time.Minute))}

	store := &ports.FakeOrderStore{Snapshot: ports.SolvableOrdersSnapshot{Orders: orders}}
	deps := Deps{
		OrderStore:         store,
		BannedUsers:        &ports.FakeBannedUsers{Banned: map[types.Token]bool{owner: true}},
		SignatureValidator: &ports.FakeSignatureValidator{},
		BadTokenDetector:   &ports.FakeBadTokenDetector{},
		BalanceFetcher:     &ports.FakeBalanceFetcher{},
		NativePriceOracle:  ports.NewFakeNativePriceOracle(nil),
		CowAmmRegistry:     &ports.FakeCowAmmRegistry{},
	}
	p, err := New(deps, testConfig(), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Run(context.Background(), now, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Auction.Orders) != 0 {
		t.Fatalf("expected banned owner's order to be dropped, got %d orders", len(res.Auction.Orders))
	}
}

func TestFilterDustDropsZeroRemainingPartialFill(t *testing.T) {
	p, _ := newTestPipeline(t, nil, nil, nil)
	o := baseOrder(1, types.Token{1}, types.Token{2}, types.Token{3}, time.Now())
	o.PartiallyFillable = true
	o.ExecutedSellBeforeFees = o.SellAmount
	o.ExecutedFee = o.FeeAmount

	kept, dropped := p.filterDust([]types.Order{o})
	if len(kept) != 0 {
		t.Fatalf("expected fully-executed partial order to be treated as dust, got %d kept", len(kept))
	}
	if len(dropped) != 1 || dropped[0].Kind != ports.EventFiltered {
		t.Fatalf("expected a single filtered event, got %+v", dropped)
	}
}
