package types

import "time"

// OrderUid is a 56-byte opaque identifier: order digest (32B) ‖ owner (20B)
// ‖ valid_to (4B). Globally unique and stable across restarts.
type OrderUid [56]byte

func (u OrderUid) String() string {
	return "0x" + hexString(u[:])
}

func hexString(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 2*len(b))
	for i, v := range b {
		out[2*i] = hexdigits[v>>4]
		out[2*i+1] = hexdigits[v&0x0f]
	}
	return string(out)
}

// OrderKind is the trading direction requested by the user.
type OrderKind string

const (
	KindSell OrderKind = "sell"
	KindBuy  OrderKind = "buy"
)

// OrderClass determines prioritisation in the pipeline (§4.1 checkpoint 7).
type OrderClass string

const (
	ClassMarket    OrderClass = "market"
	ClassLimit     OrderClass = "limit"
	ClassLiquidity OrderClass = "liquidity"
)

// SellTokenSource determines where sell-side balance is drawn from.
type SellTokenSource string

const (
	SourceErc20    SellTokenSource = "erc20"
	SourceExternal SellTokenSource = "external"
	SourceInternal SellTokenSource = "internal"
)

// BuyTokenDestination determines where bought tokens are deposited.
type BuyTokenDestination string

const (
	DestinationErc20     BuyTokenDestination = "erc20"
	DestinationInternal  BuyTokenDestination = "internal"
)

// SignatureScheme tags the variant of an order's signature.
type SignatureScheme string

const (
	SignatureEip712  SignatureScheme = "eip712"
	SignatureEthSign SignatureScheme = "ethsign"
	SignatureEip1271 SignatureScheme = "eip1271"
	SignaturePreSign SignatureScheme = "presign"
)

// Signature is a tagged variant over the four signing schemes an order may
// use (§3). For Eip1271, Signer carries the verifying contract's address;
// for the ECDSA schemes Bytes is the 65-byte r‖s‖v signature.
type Signature struct {
	Scheme SignatureScheme
	Bytes  []byte // ECDSA schemes: 65 bytes. Eip1271: arbitrary contract-defined bytes.
}

// OrderStatus is derived, never stored — see Order.Status.
type OrderStatus string

const (
	StatusOpen                OrderStatus = "open"
	StatusFulfilled            OrderStatus = "fulfilled"
	StatusCancelled            OrderStatus = "cancelled"
	StatusExpired              OrderStatus = "expired"
	StatusPresignaturePending  OrderStatus = "presignature-pending"
)

// Order is an immutable, cheaply-cloneable snapshot handed to the pipeline
// and the arbitrator (§9 "Ownership of orders"). Mutating fields
// (executed_*) are only ever updated by the external OrderStore in response
// to on-chain settlement observation; the core never mutates an Order.
type Order struct {
	Uid      OrderUid
	Owner    Token
	Receiver Token // defaults to Owner if zero

	SellToken  Token
	BuyToken   Token
	SellAmount Amount
	BuyAmount  Amount
	FeeAmount  Amount

	ValidTo uint32 // unix seconds
	AppData [32]byte

	Kind               OrderKind
	PartiallyFillable  bool
	SellTokenSource    SellTokenSource
	BuyTokenDestination BuyTokenDestination
	Signature          Signature
	Class              OrderClass
	ProtocolFees       []FeePolicy

	// PreInteractions run before the trade is settled, PostInteractions
	// after (§4.4); both are user-supplied (e.g. approvals, unwraps) and
	// carried verbatim into the encoded settlement.
	PreInteractions  []Interaction
	PostInteractions []Interaction

	CreatedAt time.Time // used for balance-filter ordering and price prioritisation

	// Mutated only on settlement observation by the external store; monotonic
	// non-decreasing. A fresh order has all three zero.
	ExecutedSellBeforeFees Amount
	ExecutedBuy            Amount
	ExecutedFee            Amount

	// PresignaturePending is true if Signature.Scheme == PreSign and no
	// presignature event has yet been recorded for this order.
	PresignaturePending bool

	// Invalidated is true if the owner cancelled the order on-chain.
	Invalidated bool
}

// EffectiveReceiver returns Receiver, defaulting to Owner when unset.
func (o Order) EffectiveReceiver() Token {
	if o.Receiver == (Token{}) {
		return o.Owner
	}
	return o.Receiver
}

// Status derives the order's lifecycle state per §3's invariant:
//
//	Fulfilled iff executed_sell - executed_fee == sell_amount (sell order)
//	           or executed_buy == buy_amount (buy order);
//	else Cancelled if invalidated;
//	else Expired if valid_to < now;
//	else PresignaturePending if PreSign and no presignature recorded;
//	else Open.
func (o Order) Status(now time.Time) OrderStatus {
	if o.isFilled() {
		return StatusFulfilled
	}
	if o.Invalidated {
		return StatusCancelled
	}
	if int64(o.ValidTo) < now.Unix() {
		return StatusExpired
	}
	if o.Signature.Scheme == SignaturePreSign && o.PresignaturePending {
		return StatusPresignaturePending
	}
	return StatusOpen
}

func (o Order) isFilled() bool {
	switch o.Kind {
	case KindSell:
		filled := o.ExecutedSellBeforeFees.Sub(o.ExecutedFee)
		return filled.Cmp(o.SellAmount) == 0
	case KindBuy:
		return o.ExecutedBuy.Cmp(o.BuyAmount) == 0
	default:
		return false
	}
}

// RemainingFraction returns what is left of the order, used by the dust
// filter (§4.1 checkpoint 5). For a sell order, sellRemaining is the
// SellAmount+FeeAmount not yet executed and buyRemaining is the full
// BuyAmount; for a buy order, buyRemaining is the BuyAmount not yet executed
// and sellRemaining is the full SellAmount.
func (o Order) RemainingFraction() (sellRemaining, buyRemaining Amount) {
	switch o.Kind {
	case KindSell:
		total, _ := o.SellAmount.Add(o.FeeAmount)
		executedWithFee, _ := o.ExecutedSellBeforeFees.Add(o.ExecutedFee)
		sellRemaining = total.Sub(executedWithFee)
		// buy side scales proportionally; computed by caller using cross-mult.
		buyRemaining = o.BuyAmount
	case KindBuy:
		buyRemaining = o.BuyAmount.Sub(o.ExecutedBuy)
		sellRemaining = o.SellAmount
	}
	return
}
