package types

// Interaction is a single contract call a settlement must execute as part
// of its pre-, intra-, or post-interaction bucket (§4.4).
type Interaction struct {
	Target   Token
	Value    Amount
	CallData []byte
}

// TradedOrder is a single order's promised execution within a Solution
// (§3). Executed* are promises made by the solver, not yet observed
// on-chain.
type TradedOrder struct {
	OrderUid OrderUid
	Side     OrderKind

	SellToken  Token
	SellAmount Amount
	BuyToken   Token
	BuyAmount  Amount

	ExecutedSell Amount
	ExecutedBuy  Amount

	// JitOrder is true if this trade was introduced by the solver mid-auction
	// rather than originating from the OrderStore (§3 "JIT order").
	JitOrder bool
	JitOwner Token // only meaningful if JitOrder
}

// Solution is a solver-proposed multi-order settlement plan (a "bid" before
// scoring — §3).
type Solution struct {
	Id     uint64
	Solver Token

	Trades []TradedOrder

	// Interactions are the solver's own intra-interactions, executed
	// between the pre- and post-interaction buckets drawn from the traded
	// orders themselves (§4.4).
	Interactions []Interaction

	// ClearingPrices is homogeneous: scale is arbitrary but internally
	// consistent, only ratios matter (§3).
	ClearingPrices map[Token]Amount

	// CalldataHex carries the solver's proposed execution plan for the
	// verifier (§4.5). Empty means the solver opted out of providing
	// calldata, which skips verification per §4.5.4.
	CalldataHex string

	// TxOrigin is the address the solver intends to submit from, used by
	// the verifier's state overrides (§4.5.1) and the legacy zero-origin
	// exception (§4.5.4, §9).
	TxOrigin Token
}

// ClearingPrice returns the solution's clearing price for a token and
// whether it is present — missing prices for a traded token are a
// Data-integrity condition (§7).
func (s Solution) ClearingPrice(t Token) (Amount, bool) {
	p, ok := s.ClearingPrices[t]
	return p, ok
}
