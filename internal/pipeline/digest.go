package pipeline

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// domainChainID is fixed at construction time in practice (the coordinator
// runs against one chain per deployment); it's kept as a package variable so
// tests can override it without threading chain ID through every call site.
var domainChainID = big.NewInt(1)

// OrderDigest computes the EIP-712 typed-data hash GPv2Settlement verifies
// against, the same digest embedded in the order's OrderUid (§3). Only the
// fields that participate in the signed struct are included; amounts are
// carried as decimal strings since apitypes.TypedDataMessage is untyped.
func OrderDigest(o types.Order) [32]byte {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "sellToken", Type: "address"},
				{Name: "buyToken", Type: "address"},
				{Name: "receiver", Type: "address"},
				{Name: "sellAmount", Type: "uint256"},
				{Name: "buyAmount", Type: "uint256"},
				{Name: "validTo", Type: "uint32"},
				{Name: "appData", Type: "bytes32"},
				{Name: "feeAmount", Type: "uint256"},
				{Name: "kind", Type: "string"},
				{Name: "partiallyFillable", Type: "bool"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           (*ethmath.HexOrDecimal256)(new(big.Int).Set(domainChainID)),
			VerifyingContract: "0x9008D19f58AAbD9eD0D60971565AA8510560ab41",
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         o.SellToken.String(),
			"buyToken":          o.BuyToken.String(),
			"receiver":          o.EffectiveReceiver().String(),
			"sellAmount":        o.SellAmount.String(),
			"buyAmount":         o.BuyAmount.String(),
			"validTo":           fmt.Sprintf("%d", o.ValidTo),
			"appData":           hexutil.Encode(o.AppData[:]),
			"feeAmount":         o.FeeAmount.String(),
			"kind":              string(o.Kind),
			"partiallyFillable": o.PartiallyFillable,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		// Hash computation only fails on a malformed type schema, which is
		// fixed at compile time above; a failure here is a programmer error.
		panic("pipeline: order digest: " + err.Error())
	}
	var digest [32]byte
	copy(digest[:], hash)
	return digest
}
