package types

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit on-chain quantity. Every ratio comparison in
// this codebase (misprice checks, limit-price checks, fairness rate
// comparisons) is done by cross-multiplying two Amounts and comparing the
// products as exact integers — floating point never enters a correctness
// path, only metrics (§3 "Amount" invariant).
type Amount struct {
	v *uint256.Int
}

// ZeroAmount is the additive identity.
func ZeroAmount() Amount {
	return Amount{v: uint256.NewInt(0)}
}

// AmountFromUint64 builds an Amount from a small integer, chiefly for tests.
func AmountFromUint64(n uint64) Amount {
	return Amount{v: uint256.NewInt(n)}
}

// AmountFromBig constructs an Amount from a uint256.Int, taking ownership of
// a copy so callers may keep mutating their own value.
func AmountFromBig(v *uint256.Int) Amount {
	if v == nil {
		return ZeroAmount()
	}
	return Amount{v: new(uint256.Int).Set(v)}
}

// ParseAmount parses a base-10 string into an Amount.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{v: v}, nil
}

// Int exposes the underlying uint256.Int for callers that need to hand it to
// go-ethereum APIs (e.g. ABI encoding). The returned value must not be
// mutated by the caller.
func (a Amount) Int() *uint256.Int {
	if a.v == nil {
		return uint256.NewInt(0)
	}
	return a.v
}

func (a Amount) IsZero() bool {
	return a.v == nil || a.v.IsZero()
}

func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.Dec()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Add returns a+b and whether the addition overflowed uint256. Overflow
// checking backs the No-overflow invariant in §8: "sell_amount + fee_amount
// ≤ 2^256 − 1".
func (a Amount) Add(b Amount) (sum Amount, overflow bool) {
	var r uint256.Int
	_, of := r.AddOverflow(a.Int(), b.Int())
	return Amount{v: &r}, of
}

// Sub returns a-b. Saturates at zero rather than wrapping, since every
// subtraction in this codebase is a "remaining amount" computation where a
// negative result is a caller bug, not a valid quantity.
func (a Amount) Sub(b Amount) Amount {
	if a.Int().Cmp(b.Int()) < 0 {
		return ZeroAmount()
	}
	var r uint256.Int
	r.Sub(a.Int(), b.Int())
	return Amount{v: &r}
}

func (a Amount) Cmp(b Amount) int {
	return a.Int().Cmp(b.Int())
}

func (a Amount) LessThan(b Amount) bool {
	return a.Cmp(b) < 0
}

func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.Cmp(b) >= 0
}

// MulOverflows reports whether a*b would overflow uint256 — used by the
// cross-multiplication helpers below before they trust the product.
func MulOverflows(a, b Amount) bool {
	var r uint256.Int
	_, of := r.MulOverflow(a.Int(), b.Int())
	return of
}

// CrossLess reports whether a/b < c/d as an exact rational comparison,
// computed as a*d < c*b to avoid floating point. Used throughout the
// pipeline and arbitrator for price and misprice comparisons. ok is false
// when either cross product overflows uint256, e.g. because a native price
// is unbounded and not subject to the intake no-overflow check; per §7 a
// data-integrity overflow must reject the bid it occurred in, never crash
// the round, so callers must check ok rather than trust less when it's false.
func CrossLess(a, b, c, d Amount) (less, ok bool) {
	var left, right uint256.Int
	if _, of := left.MulOverflow(a.Int(), d.Int()); of {
		return false, false
	}
	if _, of := right.MulOverflow(c.Int(), b.Int()); of {
		return false, false
	}
	return left.Cmp(&right) < 0, true
}

// CrossLessOrEqual reports whether a/b <= c/d, i.e. a*d <= c*b. ok is false
// on cross-product overflow, same as CrossLess.
func CrossLessOrEqual(a, b, c, d Amount) (lessOrEqual, ok bool) {
	var left, right uint256.Int
	if _, of := left.MulOverflow(a.Int(), d.Int()); of {
		return false, false
	}
	if _, of := right.MulOverflow(c.Int(), b.Int()); of {
		return false, false
	}
	return left.Cmp(&right) <= 0, true
}
