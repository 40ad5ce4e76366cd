package types

// NativePrice is the price of one unit of a token expressed in native
// units, scaled by 1e18 (§3). Stored as Amount so comparisons stay exact
// integer arithmetic.
type NativePrice = Amount

// Auction is the immutable per-round snapshot published by AuctionLoop and
// consumed by solvers and the arbitrator. Once published it is never
// mutated (§3 Lifecycle).
type Auction struct {
	Id    uint64
	Block uint64

	Orders []Order

	// Prices maps every token referenced by an included order's sell_token
	// or buy_token, plus the wrapped-native token, to its native price.
	// Price coverage is a Testable Property (§8).
	Prices map[Token]NativePrice

	// SurplusCapturingJitOwners is the set of addresses whose JIT orders
	// contribute to surplus scoring (§4.3.1).
	SurplusCapturingJitOwners map[Token]struct{}
}

// Clone returns a deep-enough copy safe to read concurrently with future
// mutation of the original — used by the single-slot AuctionCache (§4.2,
// §5) which is value-cloned on read.
func (a Auction) Clone() Auction {
	orders := make([]Order, len(a.Orders))
	copy(orders, a.Orders)

	prices := make(map[Token]NativePrice, len(a.Prices))
	for k, v := range a.Prices {
		prices[k] = v
	}

	owners := make(map[Token]struct{}, len(a.SurplusCapturingJitOwners))
	for k := range a.SurplusCapturingJitOwners {
		owners[k] = struct{}{}
	}

	return Auction{
		Id:                        a.Id,
		Block:                     a.Block,
		Orders:                    orders,
		Prices:                    prices,
		SurplusCapturingJitOwners: owners,
	}
}

// HasPrice reports whether both sides of the token pair have a cached
// native price — used by checkpoint 6 (§4.1).
func (a Auction) HasPrice(sell, buy Token) bool {
	_, sellOk := a.Prices[sell]
	_, buyOk := a.Prices[buy]
	return sellOk && buyOk
}

// IsJitSurplusCapturing reports whether owner's JIT orders contribute to
// surplus scoring (§4.3.1).
func (a Auction) IsJitSurplusCapturing(owner Token) bool {
	_, ok := a.SurplusCapturingJitOwners[owner]
	return ok
}
