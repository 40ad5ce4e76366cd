package ports

import (
	"context"
	"testing"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

func TestFakeBalanceFetcherReturnsConfiguredValues(t *testing.T) {
	owner := types.Token{1}
	token := types.Token{2}
	f := &FakeBalanceFetcher{
		Balances: map[types.Token]map[types.Token]types.Amount{
			owner: {token: types.AmountFromUint64(500)},
		},
	}
	results, err := f.GetBalances(context.Background(), []BalanceQuery{{Owner: owner, Token: token}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Amount.Cmp(types.AmountFromUint64(500)) != 0 {
		t.Fatalf("expected 500, got %s", results[0].Amount)
	}
}

func TestFakeNativePriceOracleTracksPriority(t *testing.T) {
	tokA := types.Token{1}
	oracle := NewFakeNativePriceOracle(map[types.Token]types.NativePrice{})
	oracle.ReplaceHighPriority([]types.Token{tokA})
	got := oracle.LastPriority()
	if len(got) != 1 || got[0] != tokA {
		t.Fatalf("expected priority hint to be recorded, got %v", got)
	}
}

func TestFakeCowAmmRegistryCountsRefresh(t *testing.T) {
	reg := &FakeCowAmmRegistry{}
	_ = reg.Refresh(context.Background())
	_ = reg.Refresh(context.Background())
	if reg.Refreshed != 2 {
		t.Fatalf("expected 2 refreshes, got %d", reg.Refreshed)
	}
}
