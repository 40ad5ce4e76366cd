package arbitrator

import (
	"github.com/cow-autopilot/coordinator/pkg/types"
	"github.com/holiman/uint256"
)

// Local exact-rational helpers, same pattern as internal/pipeline/amountmath.go:
// every ratio comparison goes through cross-multiplication on fresh uint256.Int
// locals rather than floats, since Amount's methods mutate their receiver.

func mulAmountExact(a, b types.Amount) types.Amount {
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(a.Int(), b.Int()); overflow {
		return types.ZeroAmount()
	}
	return types.AmountFromBig(&prod)
}

func divAmountExact(a, b types.Amount) types.Amount {
	if b.IsZero() {
		return types.ZeroAmount()
	}
	var q uint256.Int
	q.Div(a.Int(), b.Int())
	return types.AmountFromBig(&q)
}

// crossEqual reports whether a/b == c/d, computed as a*d == c*b.
func crossEqual(a, b, c, d types.Amount) bool {
	var left, right uint256.Int
	if _, of := left.MulOverflow(a.Int(), d.Int()); of {
		return false
	}
	if _, of := right.MulOverflow(c.Int(), b.Int()); of {
		return false
	}
	return left.Cmp(&right) == 0
}
