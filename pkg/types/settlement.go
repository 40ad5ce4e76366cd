package types

// EncodedSettlement is SettlementBuilder's output (§4.4): a winning
// solution turned into the token/price/trade/interaction shape a settlement
// contract call expects. internal/verifier ABI-encodes it into a settle()
// call for simulation; ports.Submitter only ever sees a final byte string,
// not this struct.
type EncodedSettlement struct {
	// Tokens is the union of every token touched by a trade or a clearing
	// price, ordered by first appearance (§4.4).
	Tokens []Token

	// ClearingPrices is aligned index-for-index with Tokens.
	ClearingPrices []Amount

	Trades []EncodedTrade

	PreInteractions   []Interaction
	IntraInteractions []Interaction
	PostInteractions  []Interaction
}

// TradeFlags packs an order's kind/fill/source/destination/signature-scheme
// into the single encoded trade record (§4.4).
type TradeFlags struct {
	Kind                OrderKind
	PartiallyFillable   bool
	SellTokenSource     SellTokenSource
	BuyTokenDestination BuyTokenDestination
	SignatureScheme     SignatureScheme
}

// EncodedTrade is one settled order, referencing Tokens by index rather
// than by address (§4.4).
type EncodedTrade struct {
	SellTokenIndex int
	BuyTokenIndex  int

	Receiver Token

	SellAmount Amount
	BuyAmount  Amount
	ValidTo    uint32
	AppData    [32]byte
	FeeAmount  Amount

	Flags TradeFlags

	// ExecutedAmount is the user-side executed quantity: sell_amount's
	// units for a sell order, buy_amount's units for a buy order (§4.4).
	ExecutedAmount Amount

	Signature []byte
}
