package types

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestAmountAddOverflow(t *testing.T) {
	max := AmountFromBig(new(uint256.Int).Not(uint256.NewInt(0)))
	one := AmountFromUint64(1)

	if _, overflow := max.Add(one); !overflow {
		t.Fatal("expected overflow adding 1 to max uint256")
	}
	if _, overflow := AmountFromUint64(1).Add(AmountFromUint64(2)); overflow {
		t.Fatal("unexpected overflow for small addition")
	}
}

func TestAmountSubSaturates(t *testing.T) {
	got := AmountFromUint64(5).Sub(AmountFromUint64(10))
	if !got.IsZero() {
		t.Fatalf("expected saturating sub to clamp at zero, got %s", got)
	}
}

func TestCrossLess(t *testing.T) {
	// 1/2 < 2/3 ?  1*3=3 < 2*2=4 -> true
	if less, ok := CrossLess(AmountFromUint64(1), AmountFromUint64(2), AmountFromUint64(2), AmountFromUint64(3)); !ok || !less {
		t.Fatal("expected 1/2 < 2/3")
	}
	// 2/3 < 1/2 ? false
	if less, ok := CrossLess(AmountFromUint64(2), AmountFromUint64(3), AmountFromUint64(1), AmountFromUint64(2)); !ok || less {
		t.Fatal("expected 2/3 not < 1/2")
	}
}

func TestCrossLessOverflow(t *testing.T) {
	max := AmountFromBig(new(uint256.Int).Not(uint256.NewInt(0)))
	if _, ok := CrossLess(max, AmountFromUint64(1), AmountFromUint64(2), AmountFromUint64(1)); ok {
		t.Fatal("expected ok=false on cross-product overflow")
	}
}

func TestCrossLessOrEqual(t *testing.T) {
	if lessOrEqual, ok := CrossLessOrEqual(AmountFromUint64(1), AmountFromUint64(2), AmountFromUint64(2), AmountFromUint64(4)); !ok || !lessOrEqual {
		t.Fatal("expected 1/2 <= 2/4")
	}
}

func TestAmountRoundTripJSON(t *testing.T) {
	a := AmountFromUint64(123456789)
	data, err := a.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var b Amount
	if err := b.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.Cmp(b) != 0 {
		t.Fatalf("round-trip mismatch: %s != %s", a, b)
	}
}
