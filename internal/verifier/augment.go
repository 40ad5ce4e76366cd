package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// augmentForSimulation builds the settlement the verifier actually
// simulates: the caller's own pre/intra/post interactions plus the
// trade-setup call that conditionally funds the trader from the spardose,
// and the balance-tracking calls bracketing the trade so the simulation can
// report back tokens_lost/out_amount afterward (§4.5.2 "encode_settlement",
// "add_balance_queries" — "measure right before swap, measure right after").
func augmentForSimulation(settlement types.EncodedSettlement, query PriceQuery, verification Verification, trader, solverHelper, settlementContract common.Address, wrappedNative types.Token) (types.EncodedSettlement, error) {
	setupData, err := encodeEnsureTradePreconditionsCall(trader, settlementContract, query.SellToken.Address(), query.InAmount.Int().ToBig(), wrappedNative.Address())
	if err != nil {
		return types.EncodedSettlement{}, fmt.Errorf("encode trade-setup call: %w", err)
	}
	setupInteraction := types.Interaction{Target: types.TokenFromAddress(solverHelper), Value: types.ZeroAmount(), CallData: setupData}

	trackedToken, trackedOwner := balanceTrackingTarget(query, trader, verification.Receiver.Address())
	storeData, err := encodeStoreBalanceCall(trackedToken.Address(), trackedOwner, true)
	if err != nil {
		return types.EncodedSettlement{}, fmt.Errorf("encode store-balance call: %w", err)
	}
	storeInteraction := types.Interaction{Target: types.TokenFromAddress(solverHelper), Value: types.ZeroAmount(), CallData: storeData}

	augmented := settlement
	augmented.PreInteractions = append(append(append([]types.Interaction{}, settlement.PreInteractions...), setupInteraction), storeInteraction)
	augmented.PostInteractions = append(append([]types.Interaction{storeInteraction}, settlement.PostInteractions...))
	return augmented, nil
}

// balanceTrackingTarget picks which (token, owner) pair's balance the
// simulation needs bracketed: for a sell order, the buy token landing in
// the receiver (or the trader, if no distinct receiver was given); for a
// buy order, the sell token leaving the trader (§4.5.2).
func balanceTrackingTarget(query PriceQuery, trader, receiver common.Address) (types.Token, common.Address) {
	if query.Kind == types.KindBuy {
		return query.SellToken, trader
	}
	owner := receiver
	if owner == (common.Address{}) {
		owner = trader
	}
	return query.BuyToken, owner
}
