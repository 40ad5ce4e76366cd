// Package verifier implements the TradeVerifier (C5, §4.5): simulating a
// winning bid's settlement against a forked chain state before it is allowed
// to settle, so a solver's promised quote is checked against what the chain
// would actually do. Grounded on
// original_source/crates/shared/src/price_estimation/trade_verifier/mod.rs,
// the real implementation this package's algorithm is a direct Go port of.
package verifier

import (
	"errors"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// PriceQuery is the trade the verifier is asked to check: what the solver
// claims a user could get for trading in_amount of sell_token/buy_token
// (§4.5).
type PriceQuery struct {
	SellToken types.Token
	BuyToken  types.Token
	Kind      types.OrderKind
	InAmount  types.Amount
}

// Verification carries the trader-side context a simulation needs that
// doesn't come from the settlement itself: who is trading, where the
// proceeds go, and any setup/teardown calls the real trader would run
// around the trade (§4.5).
type Verification struct {
	TraderFrom     types.Token
	Receiver       types.Token
	SellSource     types.SellTokenSource
	BuyDestination types.BuyTokenDestination

	PreInteractions  []types.Interaction
	PostInteractions []types.Interaction

	// TxOrigin is the address the simulated call's tx.origin should be; a
	// zero value is the legacy zeroex-RFQ signal handled by
	// VerifierConfig.LegacyZeroOriginException (§4.5.4, §9).
	TxOrigin types.Token

	// Solver is the address the simulated call is made from and to, so
	// that gas is never charged against the trader's own balance (§4.5.2).
	Solver types.Token
}

// ErrBuffersPayForOrder means the simulated settlement lost more of the
// trade's sell or buy token than the configured inaccuracy limit allows
// (§4.5.3) — the bid is rejected outright, not merely marked unverified.
var ErrBuffersPayForOrder = errors.New("verifier: settlement buffers would pay for more of this trade than the inaccuracy limit allows")

// simErrorKind classifies a simulation RPC failure per §4.5.4.
type simErrorKind int

const (
	simErrorOther simErrorKind = iota
	simErrorUnsupported
	simErrorTransient
)
