package settlement

import "errors"

// Sentinel errors for the three validate-and-reject conditions of §4.4.
var (
	// ErrMissingClearingPrice means the union of clearing prices doesn't
	// cover every token in the token vector.
	ErrMissingClearingPrice = errors.New("settlement: missing clearing price for a traded token")

	// ErrTokenNotInVector means a trade references a token absent from the
	// computed token vector — should be unreachable given the vector is
	// built from the same trades, kept as a defensive check.
	ErrTokenNotInVector = errors.New("settlement: trade token not in token vector")

	// ErrLimitPriceViolation means a trade's executed amounts fail the
	// order's own limit price: sell_amount * executed_buy >= buy_amount *
	// executed_sell.
	ErrLimitPriceViolation = errors.New("settlement: executed amounts violate order limit price")

	// ErrOrderNotFound means a non-JIT trade references an order absent
	// from the auction snapshot.
	ErrOrderNotFound = errors.New("settlement: order not found in auction")
)
