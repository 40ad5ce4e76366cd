package types

// TokensLostRatio is the per-token rational change in settlement-contract buffer
// balances observed during a simulated trade (§3 "tokens_lost"). Expressed
// as a numerator/denominator pair (lost amount / amount traded in that
// token) rather than a float so the acceptance rule (§4.5.3) stays exact.
type TokensLostRatio struct {
	Lost   Amount
	Traded Amount
	// Negative is true when the settlement contract's buffer grew rather
	// than shrank (a surplus) — always acceptable per §4.5.3.
	Negative bool
}

// LessThanFactor reports whether Lost/Traded < numerator/denominator, i.e.
// whether this ratio is under the configured quote_inaccuracy_limit. A
// cross-product overflow (ok false) is treated as not under the limit, so
// the caller rejects the bid rather than accept an unverifiable ratio (§7).
func (r TokensLostRatio) LessThanFactor(numerator, denominator uint64) bool {
	if r.Negative {
		return true
	}
	if r.Traded.IsZero() {
		return r.Lost.IsZero()
	}
	less, ok := CrossLess(r.Lost, r.Traded, AmountFromUint64(numerator), AmountFromUint64(denominator))
	return ok && less
}

// SimulationReport is the outcome of TradeVerifier.Verify (§3, §4.5).
type SimulationReport struct {
	Verified   bool
	OutAmount  Amount
	GasUsed    uint64
	TokensLost map[Token]TokensLostRatio
}
