package types

import "github.com/holiman/uint256"

// FeePolicyKind tags the variant of a protocol fee.
type FeePolicyKind string

const (
	FeeSurplus          FeePolicyKind = "surplus"
	FeePriceImprovement FeePolicyKind = "price_improvement"
	FeeVolume           FeePolicyKind = "volume"
)

// FeePolicy is a tagged variant over the three protocol fee shapes (§3).
// Factor and MaxVolumeFactor are exact rationals expressed as a numerator
// over a fixed 1e6 denominator (FactorScale) so they can be applied with
// integer arithmetic rather than floats.
type FeePolicy struct {
	Kind FeePolicyKind

	// Surplus, PriceImprovement
	Factor          uint64 // numerator over FactorScale
	MaxVolumeFactor uint64 // numerator over FactorScale

	// PriceImprovement only
	Quote *Quote

	// Volume
	VolumeFactor uint64 // numerator over FactorScale
}

// FactorScale is the fixed-point denominator all FeePolicy factors are
// expressed over (a factor of 1,000,000 means 100%).
const FactorScale = 1_000_000

// Apply computes the fee this one policy charges on a single trade. It
// returns only the fee: the executed amounts are not reduced by it, and
// nothing here chains the policies of a ProtocolFees sequence.
//
// Surplus: fee = min(factor * surplus, max_volume_factor * volume).
// Volume: fee = volume_factor * volume.
// PriceImprovement: like Surplus, but surplus is measured against the quoted
// price rather than the order's limit price.
func (p FeePolicy) Apply(executedSell, executedBuy, limitSell, limitBuy Amount) (fee Amount) {
	switch p.Kind {
	case FeeVolume:
		return scaleAmount(executedSell, p.VolumeFactor)
	case FeeSurplus:
		surplus := surplusAgainst(executedSell, executedBuy, limitSell, limitBuy)
		return capByVolume(scaleAmount(surplus, p.Factor), executedSell, p.MaxVolumeFactor)
	case FeePriceImprovement:
		qSell, qBuy := limitSell, limitBuy
		if p.Quote != nil {
			qSell, qBuy = p.Quote.QuotedSell, p.Quote.QuotedBuy
		}
		surplus := surplusAgainst(executedSell, executedBuy, qSell, qBuy)
		return capByVolume(scaleAmount(surplus, p.Factor), executedSell, p.MaxVolumeFactor)
	default:
		return ZeroAmount()
	}
}

// surplusAgainst computes the sell-side surplus of an executed trade versus
// a reference (limit or quoted) price: the extra buy-token value delivered
// beyond what the reference price demanded, converted into sell-token units
// via the reference ratio so the fee is denominated consistently.
func surplusAgainst(executedSell, executedBuy, refSell, refBuy Amount) Amount {
	if refSell.IsZero() {
		return ZeroAmount()
	}
	// expectedBuy = executedSell * refBuy / refSell
	expected := mulDiv(executedSell, refBuy, refSell)
	if executedBuy.Cmp(expected) <= 0 {
		return ZeroAmount()
	}
	// excess buy amount, converted to sell-token units at refSell/refBuy
	return mulDiv(executedBuy.Sub(expected), refSell, refBuy)
}

func scaleAmount(a Amount, factorNumerator uint64) Amount {
	return mulDiv(a, AmountFromUint64(factorNumerator), AmountFromUint64(FactorScale))
}

func capByVolume(fee, volume Amount, maxVolumeFactor uint64) Amount {
	capAmt := scaleAmount(volume, maxVolumeFactor)
	if fee.Cmp(capAmt) > 0 {
		return capAmt
	}
	return fee
}

// mulDiv computes floor(a*b/c) using uint256 arithmetic.
func mulDiv(a, b, c Amount) Amount {
	if c.IsZero() {
		return ZeroAmount()
	}
	var prod uint256.Int
	if _, of := prod.MulOverflow(a.Int(), b.Int()); of {
		// Data-integrity condition per §7; callers reject the order/bid
		// rather than trust a saturated result.
		return ZeroAmount()
	}
	var q uint256.Int
	q.Div(&prod, c.Int())
	return AmountFromBig(&q)
}
