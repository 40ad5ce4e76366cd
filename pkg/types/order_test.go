package types

import (
	"testing"
	"time"
)

func TestOrderStatusFulfilled(t *testing.T) {
	o := Order{
		Kind:                   KindSell,
		SellAmount:             AmountFromUint64(1000),
		ExecutedSellBeforeFees: AmountFromUint64(1010),
		ExecutedFee:            AmountFromUint64(10),
		ValidTo:                4000000000,
	}
	if got := o.Status(time.Unix(2000000000, 0)); got != StatusFulfilled {
		t.Fatalf("expected Fulfilled, got %s", got)
	}
}

func TestOrderStatusExpired(t *testing.T) {
	o := Order{
		Kind:       KindBuy,
		BuyAmount:  AmountFromUint64(1000),
		ExecutedBuy: AmountFromUint64(0),
		ValidTo:    1, // long past
	}
	if got := o.Status(time.Unix(2000000000, 0)); got != StatusExpired {
		t.Fatalf("expected Expired, got %s", got)
	}
}

func TestOrderStatusPresignaturePending(t *testing.T) {
	o := Order{
		Kind:                KindBuy,
		BuyAmount:           AmountFromUint64(1000),
		ValidTo:             4000000000,
		Signature:           Signature{Scheme: SignaturePreSign},
		PresignaturePending: true,
	}
	if got := o.Status(time.Unix(2000000000, 0)); got != StatusPresignaturePending {
		t.Fatalf("expected PresignaturePending, got %s", got)
	}
}

func TestOrderEffectiveReceiver(t *testing.T) {
	owner := Token{1}
	o := Order{Owner: owner}
	if o.EffectiveReceiver() != owner {
		t.Fatal("expected receiver to default to owner")
	}
	receiver := Token{2}
	o.Receiver = receiver
	if o.EffectiveReceiver() != receiver {
		t.Fatal("expected explicit receiver to be used")
	}
}
