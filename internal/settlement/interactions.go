package settlement

import (
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// withdrawSelector is the 4-byte selector for withdraw(uint256), the
// wrapped-native contract's unwrap entrypoint (§4.4).
var withdrawSelector = crypto.Keccak256([]byte("withdraw(uint256)"))[:4]

// buildInteractions assembles the three execution buckets: pre-interactions
// and post-interactions come from the traded orders themselves, intra-
// interactions come from the solver's own plan plus the wrapped-native
// withdraw appended whenever an order's buy token is the native-ETH
// sentinel (§4.4).
func buildInteractions(solution types.Solution, orderByUID map[types.OrderUid]types.Order, wrappedNative types.Token) (pre, intra, post []types.Interaction) {
	seenOrders := make(map[types.OrderUid]bool, len(solution.Trades))

	for _, t := range solution.Trades {
		// JIT orders carry no PreInteractions/PostInteractions in this
		// model — solution.Interactions (the intra bucket) is where a
		// solver places any JIT setup calls it needs.
		if t.JitOrder || seenOrders[t.OrderUid] {
			continue
		}
		seenOrders[t.OrderUid] = true

		order, ok := orderByUID[t.OrderUid]
		if !ok {
			continue
		}
		pre = append(pre, order.PreInteractions...)
		post = append(post, order.PostInteractions...)
	}

	intra = append(intra, solution.Interactions...)
	for _, t := range solution.Trades {
		if t.BuyToken != types.NativeToken {
			continue
		}
		intra = append(intra, withdrawInteraction(wrappedNative, t.BuyAmount))
	}

	return pre, intra, post
}

// withdrawInteraction builds the withdraw(buy_amount) call on the
// wrapped-native contract (§4.4).
func withdrawInteraction(wrappedNative types.Token, buyAmount types.Amount) types.Interaction {
	amountBytes := leftPad32(buyAmount)
	callData := make([]byte, 0, len(withdrawSelector)+32)
	callData = append(callData, withdrawSelector...)
	callData = append(callData, amountBytes[:]...)

	return types.Interaction{
		Target:   wrappedNative,
		Value:    types.ZeroAmount(),
		CallData: callData,
	}
}
