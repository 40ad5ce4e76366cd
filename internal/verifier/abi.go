package verifier

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// These ABI fragments describe just enough of the settlement contract and
// the solver helper contract (§4.5.1/§4.5.2) for the verifier to build and
// decode the one simulated call it issues. They're hand-written rather than
// generated from a compiled artifact, since the real contract sources
// weren't available to ground against — see DESIGN.md.
const settlementABIJSON = `[
	{"name":"settle","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"tokens","type":"address[]"},
		{"name":"clearingPrices","type":"uint256[]"},
		{"name":"trades","type":"tuple[]","components":[
			{"name":"sellTokenIndex","type":"uint256"},
			{"name":"buyTokenIndex","type":"uint256"},
			{"name":"receiver","type":"address"},
			{"name":"sellAmount","type":"uint256"},
			{"name":"buyAmount","type":"uint256"},
			{"name":"validTo","type":"uint32"},
			{"name":"appData","type":"bytes32"},
			{"name":"feeAmount","type":"uint256"},
			{"name":"flags","type":"uint256"},
			{"name":"executedAmount","type":"uint256"},
			{"name":"signature","type":"bytes"}
		]},
		{"name":"interactions","type":"tuple[][3]","components":[
			{"name":"target","type":"address"},
			{"name":"value","type":"uint256"},
			{"name":"callData","type":"bytes"}
		]}
	],"outputs":[]},
	{"name":"authenticator","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const solverHelperABIJSON = `[
	{"name":"swap","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"settlementContract","type":"address"},
		{"name":"tokens","type":"address[]"},
		{"name":"receiver","type":"address"},
		{"name":"settleCalldata","type":"bytes"}
	],"outputs":[
		{"name":"gasUsed","type":"uint256"},
		{"name":"queriedBalances","type":"uint256[]"}
	]},
	{"name":"ensureTradePreconditions","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"trader","type":"address"},
		{"name":"settlementContract","type":"address"},
		{"name":"sellToken","type":"address"},
		{"name":"sellAmount","type":"uint256"},
		{"name":"nativeToken","type":"address"},
		{"name":"spardose","type":"address"}
	],"outputs":[]},
	{"name":"storeBalance","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"token","type":"address"},
		{"name":"owner","type":"address"},
		{"name":"countGas","type":"bool"}
	],"outputs":[]}
]`

var (
	settlementABI   = mustParseABI(settlementABIJSON)
	solverHelperABI = mustParseABI(solverHelperABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("verifier: invalid embedded ABI fragment: %v", err))
	}
	return parsed
}

// abiTrade and abiInteraction mirror the tuple components declared above;
// go-ethereum's abi.Pack matches slice-of-struct arguments to tuple[]
// parameters by field name.
type abiTrade struct {
	SellTokenIndex *big.Int
	BuyTokenIndex  *big.Int
	Receiver       common.Address
	SellAmount     *big.Int
	BuyAmount      *big.Int
	ValidTo        uint32
	AppData        [32]byte
	FeeAmount      *big.Int
	Flags          *big.Int
	ExecutedAmount *big.Int
	Signature      []byte
}

type abiInteraction struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// packFlags packs a trade's kind/fill/source/destination/signature-scheme
// into a single uint256, this codebase's own bit layout — the real
// contract's GPv2Trade flags encoding wasn't available to ground against
// (see DESIGN.md).
func packFlags(f types.TradeFlags) *big.Int {
	var bits uint64
	if f.Kind == types.KindBuy {
		bits |= 1 << 0
	}
	if f.PartiallyFillable {
		bits |= 1 << 1
	}
	switch f.SellTokenSource {
	case types.SourceExternal:
		bits |= 1 << 2
	case types.SourceInternal:
		bits |= 2 << 2
	}
	if f.BuyTokenDestination == types.DestinationInternal {
		bits |= 1 << 4
	}
	switch f.SignatureScheme {
	case types.SignatureEthSign:
		bits |= 1 << 5
	case types.SignatureEip1271:
		bits |= 2 << 5
	case types.SignaturePreSign:
		bits |= 3 << 5
	}
	return new(big.Int).SetUint64(bits)
}

func toAbiTrade(t types.EncodedTrade) abiTrade {
	return abiTrade{
		SellTokenIndex: big.NewInt(int64(t.SellTokenIndex)),
		BuyTokenIndex:  big.NewInt(int64(t.BuyTokenIndex)),
		Receiver:       t.Receiver.Address(),
		SellAmount:     t.SellAmount.Int().ToBig(),
		BuyAmount:      t.BuyAmount.Int().ToBig(),
		ValidTo:        t.ValidTo,
		AppData:        t.AppData,
		FeeAmount:      t.FeeAmount.Int().ToBig(),
		Flags:          packFlags(t.Flags),
		ExecutedAmount: t.ExecutedAmount.Int().ToBig(),
		Signature:      t.Signature,
	}
}

func toAbiInteractions(in []types.Interaction) []abiInteraction {
	out := make([]abiInteraction, len(in))
	for i, it := range in {
		out[i] = abiInteraction{
			Target:   it.Target.Address(),
			Value:    it.Value.Int().ToBig(),
			CallData: it.CallData,
		}
	}
	return out
}

// encodeSettleCall ABI-encodes the settle() call the verifier simulates
// against forked state (§4.5.2).
func encodeSettleCall(settlement types.EncodedSettlement) ([]byte, error) {
	tokens := make([]common.Address, len(settlement.Tokens))
	for i, t := range settlement.Tokens {
		tokens[i] = t.Address()
	}
	prices := make([]*big.Int, len(settlement.ClearingPrices))
	for i, p := range settlement.ClearingPrices {
		prices[i] = p.Int().ToBig()
	}
	trades := make([]abiTrade, len(settlement.Trades))
	for i, t := range settlement.Trades {
		trades[i] = toAbiTrade(t)
	}
	interactions := [3][]abiInteraction{
		toAbiInteractions(settlement.PreInteractions),
		toAbiInteractions(settlement.IntraInteractions),
		toAbiInteractions(settlement.PostInteractions),
	}

	return settlementABI.Pack("settle", tokens, prices, trades, interactions)
}

// encodeSwapCall ABI-encodes the solver helper's swap() call, the single
// wrapper the verifier actually simulates (§4.5.2): it forwards into
// settle() on the solver's behalf so gas is charged to the solver, not the
// trader.
func encodeSwapCall(settlementContract common.Address, tokens []types.Token, receiver common.Address, settleCalldata []byte) ([]byte, error) {
	addrs := make([]common.Address, len(tokens))
	for i, t := range tokens {
		addrs[i] = t.Address()
	}
	return solverHelperABI.Pack("swap", settlementContract, addrs, receiver, settleCalldata)
}

// decodeSwapReturn unpacks swap()'s (gasUsed, queriedBalances) return value.
func decodeSwapReturn(data []byte) (gasUsed uint64, queriedBalances []*big.Int, err error) {
	out, err := solverHelperABI.Unpack("swap", data)
	if err != nil {
		return 0, nil, fmt.Errorf("unpack swap() return: %w", err)
	}
	if len(out) != 2 {
		return 0, nil, fmt.Errorf("unpack swap() return: expected 2 values, got %d", len(out))
	}
	gas, ok := out[0].(*big.Int)
	if !ok {
		return 0, nil, fmt.Errorf("unpack swap() return: gasUsed has unexpected type %T", out[0])
	}
	balances, ok := out[1].([]*big.Int)
	if !ok {
		return 0, nil, fmt.Errorf("unpack swap() return: queriedBalances has unexpected type %T", out[1])
	}
	return gas.Uint64(), balances, nil
}

// encodeAuthenticatorCall/decodeAuthenticatorReturn read the settlement
// contract's configured authenticator address, needed to know whether it
// must be overridden with a permissive stub (§4.5.1).
func encodeAuthenticatorCall() ([]byte, error) {
	return settlementABI.Pack("authenticator")
}

func decodeAuthenticatorReturn(data []byte) (common.Address, error) {
	out, err := settlementABI.Unpack("authenticator", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack authenticator() return: %w", err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("unpack authenticator() return: expected 1 value, got %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack authenticator() return: unexpected type %T", out[0])
	}
	return addr, nil
}

// encodeEnsureTradePreconditionsCall builds the solver-helper call that
// conditionally funds the trader via the spardose before the trade itself
// runs (§4.5.2 "trade_setup_interaction").
func encodeEnsureTradePreconditionsCall(trader, settlementContract, sellToken common.Address, sellAmount *big.Int, nativeToken common.Address) ([]byte, error) {
	return solverHelperABI.Pack("ensureTradePreconditions", trader, settlementContract, sellToken, sellAmount, nativeToken, spardoseAddress)
}

// encodeStoreBalanceCall builds the balance-tracking call injected into the
// pre- and post-interaction buckets (§4.5.2 "add_balance_queries").
func encodeStoreBalanceCall(token, owner common.Address, countGas bool) ([]byte, error) {
	return solverHelperABI.Pack("storeBalance", token, owner, countGas)
}
