package ports

import (
	"context"
	"sync"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// FakeOrderStore is an in-memory OrderStore used by pipeline tests.
type FakeOrderStore struct {
	Snapshot SolvableOrdersSnapshot
	Err      error
}

func (f *FakeOrderStore) SolvableOrders(ctx context.Context, minValidTo uint32) (SolvableOrdersSnapshot, error) {
	if f.Err != nil {
		return SolvableOrdersSnapshot{}, f.Err
	}
	var kept []types.Order
	for _, o := range f.Snapshot.Orders {
		if o.ValidTo >= minValidTo {
			kept = append(kept, o)
		}
	}
	return SolvableOrdersSnapshot{
		Orders:                kept,
		Quotes:                f.Snapshot.Quotes,
		LatestSettlementBlock: f.Snapshot.LatestSettlementBlock,
	}, nil
}

// FakeBalanceFetcher returns a configured balance per (owner, token), or a
// per-query error, mirroring the Recoverable drop-on-error semantics of
// §4.1.2.
type FakeBalanceFetcher struct {
	Balances map[types.Token]map[types.Token]types.Amount
	Errors   map[types.Token]error // keyed by owner
}

func (f *FakeBalanceFetcher) GetBalances(ctx context.Context, queries []BalanceQuery) ([]BalanceResult, error) {
	out := make([]BalanceResult, len(queries))
	for i, q := range queries {
		if err, ok := f.Errors[q.Owner]; ok {
			out[i] = BalanceResult{Err: err}
			continue
		}
		byToken, ok := f.Balances[q.Owner]
		if !ok {
			out[i] = BalanceResult{Amount: types.ZeroAmount()}
			continue
		}
		out[i] = BalanceResult{Amount: byToken[q.Token]}
	}
	return out, nil
}

// FakeSignatureValidator treats every check in Invalid as failing and
// everything else as valid.
type FakeSignatureValidator struct {
	Invalid map[[32]byte]bool
}

func (f *FakeSignatureValidator) Validate(ctx context.Context, checks []SignatureCheck) ([]error, error) {
	out := make([]error, len(checks))
	for i, c := range checks {
		if f.Invalid[c.OrderDigest] {
			out[i] = errInvalidSignature
		}
	}
	return out, nil
}

var errInvalidSignature = &validationError{"invalid signature"}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

// FakeBadTokenDetector flags tokens listed in Bad.
type FakeBadTokenDetector struct {
	Bad map[types.Token]string
}

func (f *FakeBadTokenDetector) Detect(ctx context.Context, token types.Token) (TokenQuality, error) {
	if reason, ok := f.Bad[token]; ok {
		return TokenQuality{Bad: true, Reason: reason}, nil
	}
	return TokenQuality{}, nil
}

// FakeNativePriceOracle serves prices from a fixed map and records the most
// recent priority hint for assertions.
type FakeNativePriceOracle struct {
	mu       sync.Mutex
	prices   map[types.Token]types.NativePrice
	priority []types.Token
}

func NewFakeNativePriceOracle(prices map[types.Token]types.NativePrice) *FakeNativePriceOracle {
	return &FakeNativePriceOracle{prices: prices}
}

func (f *FakeNativePriceOracle) EstimateNativePrice(ctx context.Context, token types.Token) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prices[token]; ok {
		return float64(p.Int().Uint64()), nil
	}
	return 0, errNoPrice
}

var errNoPrice = &validationError{"no cached native price"}

func (f *FakeNativePriceOracle) GetCachedPrices(tokens []types.Token) map[types.Token]types.NativePrice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[types.Token]types.NativePrice, len(tokens))
	for _, t := range tokens {
		if p, ok := f.prices[t]; ok {
			out[t] = p
		}
	}
	return out
}

func (f *FakeNativePriceOracle) ReplaceHighPriority(tokens []types.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priority = append([]types.Token(nil), tokens...)
}

func (f *FakeNativePriceOracle) LastPriority() []types.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Token(nil), f.priority...)
}

// SetPrice lets tests add a price after construction.
func (f *FakeNativePriceOracle) SetPrice(token types.Token, price types.NativePrice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = map[types.Token]types.NativePrice{}
	}
	f.prices[token] = price
}

// FakeCowAmmRegistry returns a fixed token list; Refresh is a no-op unless
// RefreshErr is set.
type FakeCowAmmRegistry struct {
	RefreshErr error
	TokenList  []types.Token
	Refreshed  int
}

func (f *FakeCowAmmRegistry) Refresh(ctx context.Context) error {
	f.Refreshed++
	return f.RefreshErr
}

func (f *FakeCowAmmRegistry) Tokens() []types.Token {
	return f.TokenList
}

// FakeBannedUsers flags owners listed in Banned.
type FakeBannedUsers struct {
	Banned map[types.Token]bool
}

func (f *FakeBannedUsers) IsBanned(owner types.Token) bool {
	return f.Banned[owner]
}

// FakeSubmitter records submitted calldata without sending anything.
type FakeSubmitter struct {
	mu        sync.Mutex
	Submitted [][]byte
	NextHash  [32]byte
	Err       error
}

func (f *FakeSubmitter) Submit(ctx context.Context, calldata []byte) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return [32]byte{}, f.Err
	}
	f.Submitted = append(f.Submitted, calldata)
	return f.NextHash, nil
}
