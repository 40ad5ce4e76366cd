package settlement

import (
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// leftPad32 returns a's big-endian 32-byte representation, the encoding an
// EVM call expects for a uint256 argument.
func leftPad32(a types.Amount) [32]byte {
	return a.Int().Bytes32()
}
