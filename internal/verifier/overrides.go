package verifier

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cow-autopilot/coordinator/internal/config"
)

// accountOverride is one entry of the eth_call state-override object, the
// mechanism §4.5.1 calls "a single simulated call against forked state with
// account overrides" (Geth's `eth_call(call, block, overrides)` extension).
type accountOverride struct {
	Balance   *hexutil.Big                `json:"balance,omitempty"`
	Code      hexutil.Bytes               `json:"code,omitempty"`
	StateDiff map[common.Hash]common.Hash `json:"stateDiff,omitempty"`
}

type stateOverride map[common.Address]*accountOverride

// spardoseAddress and traderImplAddress are reserved out of the low address
// space so they never collide with a real mainnet account (§4.5.1).
var (
	spardoseAddress   = common.HexToAddress("0x0000000000000000000000000000000000020000")
	traderImplAddress = common.HexToAddress("0x0000000000000000000000000000000000010000")
)

const solverPreloadBalanceWei = 1_000_000_000_000_000_000 // 1 ETH, so gas never reverts the solver call

// overrideInputs is everything buildStateOverrides needs to assemble the
// four overrides of §4.5.1.
type overrideInputs struct {
	trader             common.Address
	traderIsContract   bool
	traderDeployedCode []byte // the trader's own fetched bytecode, only set when traderIsContract

	solverOrTxOrigin common.Address

	needsAuthenticatorOverride bool
	authenticator              common.Address

	balanceOverrideToken common.Address
	balanceOverrideSlot  common.Hash
	balanceOverrideValue common.Hash
	hasBalanceOverride   bool
}

// buildStateOverrides assembles the state-override object for one
// simulation call (§4.5.1):
//  1. the trader's code is replaced with a proxy that forwards calls but
//     mocks signature checks as always-valid;
//  2. if the trader is itself a smart-contract wallet, its real bytecode is
//     preserved at a side address the proxy delegates into;
//  3. the spardose helper always gets code, since Solidity calls into an
//     address with no code would otherwise revert;
//  4. the solver/tx.origin address gets code and a funded balance so gas
//     never reverts the call;
//  5. if the trade's tx.origin differs from its own solver, the on-chain
//     authenticator is replaced with a permissive stub so the simulated
//     solver address passes the authentication check.
func buildStateOverrides(cfg config.VerifierConfig, in overrideInputs) (stateOverride, error) {
	traderCode, err := hexutil.Decode(cfg.TraderProxyCodeHex)
	if err != nil {
		return nil, fmt.Errorf("decode trader proxy code: %w", err)
	}
	solverCode, err := hexutil.Decode(cfg.SolverHelperCodeHex)
	if err != nil {
		return nil, fmt.Errorf("decode solver helper code: %w", err)
	}
	spardoseCode, err := hexutil.Decode(cfg.SpardoseCodeHex)
	if err != nil {
		return nil, fmt.Errorf("decode spardose code: %w", err)
	}

	overrides := make(stateOverride)
	overrides[in.trader] = &accountOverride{Code: traderCode}
	if in.traderIsContract && len(in.traderDeployedCode) > 0 {
		overrides[traderImplAddress] = &accountOverride{Code: in.traderDeployedCode}
	}
	overrides[spardoseAddress] = &accountOverride{Code: spardoseCode}
	overrides[in.solverOrTxOrigin] = &accountOverride{
		Code:    solverCode,
		Balance: (*hexutil.Big)(big.NewInt(solverPreloadBalanceWei)),
	}

	if in.needsAuthenticatorOverride {
		authCode, err := hexutil.Decode(cfg.AuthenticatorStubCodeHex)
		if err != nil {
			return nil, fmt.Errorf("decode authenticator stub code: %w", err)
		}
		overrides[in.authenticator] = &accountOverride{Code: authCode}
	}

	if in.hasBalanceOverride {
		acct, ok := overrides[in.balanceOverrideToken]
		if !ok {
			acct = &accountOverride{}
			overrides[in.balanceOverrideToken] = acct
		}
		if acct.StateDiff == nil {
			acct.StateDiff = make(map[common.Hash]common.Hash, 1)
		}
		acct.StateDiff[in.balanceOverrideSlot] = in.balanceOverrideValue
	}

	return overrides, nil
}

// randomTraderAddress is substituted for a zero `Verification.TraderFrom`
// when the balance-override strategy can fake a balance for it — §4.5.1:
// "if no real trader address was given but the sell token's balance can be
// faked, any address will do."
func randomTraderAddress() (common.Address, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return common.Address{}, fmt.Errorf("generate random trader address: %w", err)
	}
	return common.Address(b), nil
}
