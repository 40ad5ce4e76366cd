package settlement

import (
	"sort"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// buildTokenVector computes the union of every token touched by a trade or a
// clearing price, ordered by first appearance in the trade list (§4.4).
// Tokens that only appear in ClearingPrices (never traded) are appended
// after, sorted by address so the result is deterministic regardless of Go's
// randomized map iteration.
func buildTokenVector(solution types.Solution) ([]types.Token, map[types.Token]int) {
	var tokens []types.Token
	seen := make(map[types.Token]bool)
	add := func(t types.Token) {
		if seen[t] {
			return
		}
		seen[t] = true
		tokens = append(tokens, t)
	}

	for _, t := range solution.Trades {
		add(t.SellToken)
		add(t.BuyToken)
	}

	var untraded []types.Token
	for tok := range solution.ClearingPrices {
		if !seen[tok] {
			untraded = append(untraded, tok)
		}
	}
	sort.Slice(untraded, func(i, j int) bool { return untraded[i].Cmp(untraded[j]) < 0 })
	for _, tok := range untraded {
		add(tok)
	}

	index := make(map[types.Token]int, len(tokens))
	for i, t := range tokens {
		index[t] = i
	}
	return tokens, index
}

// alignClearingPrices produces the clearing-price vector aligned index-for-
// index with tokens, rejecting any token left uncovered (§4.4).
func alignClearingPrices(tokens []types.Token, clearingPrices map[types.Token]types.Amount) ([]types.Amount, error) {
	prices := make([]types.Amount, len(tokens))
	for i, tok := range tokens {
		p, ok := clearingPrices[tok]
		if !ok {
			return nil, ErrMissingClearingPrice
		}
		prices[i] = p
	}
	return prices, nil
}
