package types

import "testing"

func TestFeePolicyVolume(t *testing.T) {
	p := FeePolicy{Kind: FeeVolume, VolumeFactor: 10_000} // 1%
	fee := p.Apply(AmountFromUint64(1000), AmountFromUint64(1000), AmountFromUint64(1000), AmountFromUint64(1000))
	if fee.Cmp(AmountFromUint64(10)) != 0 {
		t.Fatalf("expected fee 10, got %s", fee)
	}
}

func TestFeePolicySurplusCappedByVolume(t *testing.T) {
	p := FeePolicy{Kind: FeeSurplus, Factor: 1_000_000, MaxVolumeFactor: 10_000} // 100% of surplus, capped at 1% of volume
	// executed buy far exceeds limit buy -> huge surplus, should be capped
	fee := p.Apply(
		AmountFromUint64(1000), // executedSell
		AmountFromUint64(2000), // executedBuy
		AmountFromUint64(1000), // limitSell
		AmountFromUint64(1000), // limitBuy
	)
	cap := AmountFromUint64(10) // 1% of 1000
	if fee.Cmp(cap) != 0 {
		t.Fatalf("expected fee capped at %s, got %s", cap, fee)
	}
}

func TestFeePolicyNoSurplusIsZeroFee(t *testing.T) {
	p := FeePolicy{Kind: FeeSurplus, Factor: 1_000_000, MaxVolumeFactor: 1_000_000}
	fee := p.Apply(AmountFromUint64(1000), AmountFromUint64(1000), AmountFromUint64(1000), AmountFromUint64(1000))
	if !fee.IsZero() {
		t.Fatalf("expected zero fee with no surplus, got %s", fee)
	}
}
