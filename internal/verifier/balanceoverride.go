package verifier

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// BalanceOverrider computes the storage slot and value to write on a token
// contract so that holder appears to have at least amount, the "Balance
// override" strategy of §4.5.1. ok is false when the token's balance-mapping
// slot isn't known, in which case the verifier falls back to the trader's
// real on-chain balance.
type BalanceOverrider interface {
	Override(token types.Token, holder common.Address, amount *big.Int) (slot, value common.Hash, ok bool)
}

// MappingSlotOverrider handles the common case of a standard
// `mapping(address => uint256) balances` declared at a known storage slot
// index per token. The slot index isn't discoverable from the token address
// alone, so it's configured operator-side (VerifierConfig.BalanceOverrideSlots)
// rather than probed at runtime.
type MappingSlotOverrider struct {
	slotByToken map[types.Token]uint64
}

func NewMappingSlotOverrider(slotByToken map[types.Token]uint64) *MappingSlotOverrider {
	return &MappingSlotOverrider{slotByToken: slotByToken}
}

// Override computes the standard Solidity storage key for a mapping entry:
// keccak256(pad32(holder) || pad32(slotIndex)).
func (m *MappingSlotOverrider) Override(token types.Token, holder common.Address, amount *big.Int) (common.Hash, common.Hash, bool) {
	slotIndex, ok := m.slotByToken[token]
	if !ok {
		return common.Hash{}, common.Hash{}, false
	}

	var key [64]byte
	copy(key[12:32], holder[:])
	big.NewInt(0).SetUint64(slotIndex).FillBytes(key[32:64])
	slot := common.BytesToHash(crypto.Keccak256(key[:]))

	var value common.Hash
	amount.FillBytes(value[:])
	return slot, value, true
}
