package pipeline

import (
	"github.com/cow-autopilot/coordinator/pkg/types"
	"github.com/holiman/uint256"
)

// mulAmountExact computes a*b, saturating to zero on overflow rather than
// panicking: the pricing checkpoints treat an overflowing volume as "cannot
// be priced favourably", which is always the conservative (order-dropping)
// direction.
func mulAmountExact(a, b types.Amount) types.Amount {
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(a.Int(), b.Int()); overflow {
		return types.ZeroAmount()
	}
	return types.AmountFromBig(&prod)
}

// divAmountExact computes floor(a/b), returning zero for a zero divisor.
func divAmountExact(a, b types.Amount) types.Amount {
	if b.IsZero() {
		return types.ZeroAmount()
	}
	var q uint256.Int
	q.Div(a.Int(), b.Int())
	return types.AmountFromBig(&q)
}
