package types

import "time"

// Quote is a solver- or price-estimator-provided reference price for an
// order, used by the PriceImprovement fee policy and by the mispriced-limit
// filter's fallback when no cached native price exists for a pair.
type Quote struct {
	SellToken   Token
	BuyToken    Token
	QuotedSell  Amount
	QuotedBuy   Amount
	FeeGas      uint64
	FeeGasPrice Amount
	FeeSellTokenPrice Amount // native price of sell_token at quote time
	Kind        OrderKind
	Expiration  time.Time // absolute UTC
}

func (q Quote) Expired(now time.Time) bool {
	return now.After(q.Expiration)
}
