package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/semaphore"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

const defaultGasLimit = 12_000_000

// Verifier is the TradeVerifier (C5, §4.5): it simulates a winning bid's
// settlement against forked chain state via a single state-overridden
// eth_call, then checks the result against the quote-inaccuracy acceptance
// rule before the bid is allowed to settle.
type Verifier struct {
	rpcClient          *rpc.Client
	eth                *ethclient.Client
	cfg                config.VerifierConfig
	sem                *semaphore.Weighted
	balances           BalanceOverrider
	settlementContract common.Address
	wrappedNative      types.Token
	logger             *slog.Logger
}

func New(cfg config.VerifierConfig, balances BalanceOverrider, wrappedNative types.Token, logger *slog.Logger) (*Verifier, error) {
	if !common.IsHexAddress(cfg.SettlementContract) {
		return nil, fmt.Errorf("verifier: invalid settlement_contract address %q", cfg.SettlementContract)
	}
	client, err := rpc.Dial(cfg.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("dial verifier node: %w", err)
	}
	return &Verifier{
		rpcClient:          client,
		eth:                ethclient.NewClient(client),
		cfg:                cfg,
		sem:                semaphore.NewWeighted(int64(cfg.MaxParallelRPCCalls)),
		balances:           balances,
		settlementContract: common.HexToAddress(cfg.SettlementContract),
		wrappedNative:      wrappedNative,
		logger:             logger.With("component", "verifier"),
	}, nil
}

// Verify simulates settlement and checks it against the acceptance rule
// (§4.5). hasExecutionPlan reports whether the bid actually carries
// calldata to simulate (§4.5.4 "no-calldata" case) — when false,
// verification is skipped rather than treated as a failure.
func (v *Verifier) Verify(ctx context.Context, settlement types.EncodedSettlement, query PriceQuery, verification Verification, hasExecutionPlan bool) (types.SimulationReport, error) {
	if !hasExecutionPlan {
		return types.SimulationReport{Verified: false}, nil
	}

	if err := v.sem.Acquire(ctx, 1); err != nil {
		return types.SimulationReport{}, fmt.Errorf("acquire verification slot: %w", err)
	}
	defer v.sem.Release(1)

	report, err := v.simulate(ctx, settlement, query, verification)
	if err != nil {
		switch classifySimulationError(err) {
		case simErrorUnsupported:
			v.logger.Warn("simulation unsupported by node, skipping verification", "err", err)
			return types.SimulationReport{Verified: false}, nil
		default:
			if v.cfg.LegacyZeroOriginException && verification.TxOrigin == (types.Token{}) {
				v.logger.Debug("legacy zero tx.origin exception: treating failed simulation as verified")
				return types.SimulationReport{Verified: true}, nil
			}
			return types.SimulationReport{}, fmt.Errorf("simulate: %w", err)
		}
	}

	if err := ensureQuoteAccuracy(report.TokensLost, query, v.cfg.QuoteInaccuracyLimit); err != nil {
		return types.SimulationReport{Verified: false}, err
	}

	report.Verified = true
	return report, nil
}

// simulate issues the one state-overridden eth_call and turns its result
// into a SimulationReport (§4.5.1, §4.5.2).
func (v *Verifier) simulate(ctx context.Context, settlement types.EncodedSettlement, query PriceQuery, verification Verification) (types.SimulationReport, error) {
	trader := verification.TraderFrom.Address()
	traderWasZero := trader == (common.Address{})

	var (
		hasBalanceOverride bool
		balanceSlot        common.Hash
		balanceValue       common.Hash
	)
	if v.balances != nil {
		sellCeiling := query.InAmount.Int().ToBig()
		if query.Kind == types.KindBuy {
			// A buy order's sell amount isn't bound up front; grant the
			// spardose a generous ceiling rather than the (unknown) exact
			// amount (§4.5.1).
			sellCeiling = new(big.Int).Lsh(big.NewInt(1), 128)
		}
		if slot, value, ok := v.balances.Override(query.SellToken, spardoseAddress, sellCeiling); ok {
			hasBalanceOverride = true
			balanceSlot, balanceValue = slot, value
		}
	}

	if traderWasZero {
		if !hasBalanceOverride {
			return types.SimulationReport{}, errors.New("verifier: trader is zero address and balance cannot be faked")
		}
		random, err := randomTraderAddress()
		if err != nil {
			return types.SimulationReport{}, err
		}
		trader = random
	}

	solverOrTxOrigin := verification.Solver.Address()
	if verification.TxOrigin != (types.Token{}) {
		solverOrTxOrigin = verification.TxOrigin.Address()
	}

	var (
		needsAuthOverride bool
		authenticator     common.Address
	)
	if verification.TxOrigin != (types.Token{}) && verification.TxOrigin != verification.Solver {
		addr, err := v.fetchAuthenticator(ctx)
		if err != nil {
			return types.SimulationReport{}, fmt.Errorf("fetch authenticator: %w", err)
		}
		authenticator, needsAuthOverride = addr, true
	}

	var (
		traderIsContract   bool
		traderDeployedCode []byte
	)
	if code, err := v.eth.CodeAt(ctx, trader, nil); err == nil && len(code) > 0 {
		traderIsContract, traderDeployedCode = true, code
	}

	overrides, err := buildStateOverrides(v.cfg, overrideInputs{
		trader:                     trader,
		traderIsContract:           traderIsContract,
		traderDeployedCode:         traderDeployedCode,
		solverOrTxOrigin:           solverOrTxOrigin,
		needsAuthenticatorOverride: needsAuthOverride,
		authenticator:              authenticator,
		balanceOverrideToken:       query.SellToken.Address(),
		balanceOverrideSlot:        balanceSlot,
		balanceOverrideValue:       balanceValue,
		hasBalanceOverride:         hasBalanceOverride,
	})
	if err != nil {
		return types.SimulationReport{}, err
	}

	augmented, err := augmentForSimulation(settlement, query, verification, trader, solverOrTxOrigin, v.settlementContract, v.wrappedNative)
	if err != nil {
		return types.SimulationReport{}, err
	}

	settleCalldata, err := encodeSettleCall(augmented)
	if err != nil {
		return types.SimulationReport{}, fmt.Errorf("encode settle call: %w", err)
	}
	swapCalldata, err := encodeSwapCall(v.settlementContract, augmented.Tokens, verification.Receiver.Address(), settleCalldata)
	if err != nil {
		return types.SimulationReport{}, fmt.Errorf("encode swap call: %w", err)
	}

	gasPrice, err := v.eth.SuggestGasPrice(ctx)
	if err != nil {
		return types.SimulationReport{}, fmt.Errorf("suggest gas price: %w", err)
	}
	// Double the current gas price to catch tokens with special
	// gas-price-zero logic, without risking a revert from too-low gas price
	// (§4.5.2).
	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(2))

	callMsg := struct {
		From     common.Address `json:"from"`
		To       common.Address `json:"to"`
		Gas      hexutil.Uint64 `json:"gas"`
		GasPrice *hexutil.Big   `json:"gasPrice"`
		Data     hexutil.Bytes  `json:"data"`
	}{
		From:     solverOrTxOrigin,
		To:       solverOrTxOrigin,
		Gas:      hexutil.Uint64(v.defaultGas()),
		GasPrice: (*hexutil.Big)(gasPrice),
		Data:     swapCalldata,
	}

	var resultHex hexutil.Bytes
	if err := v.rpcClient.CallContext(ctx, &resultHex, "eth_call", callMsg, "latest", overrides); err != nil {
		return types.SimulationReport{}, err
	}

	gasUsed, balances, err := decodeSwapReturn(resultHex)
	if err != nil {
		return types.SimulationReport{}, err
	}

	n := len(settlement.Tokens)
	if len(balances) != 2*n+2 {
		return types.SimulationReport{}, fmt.Errorf("verifier: expected %d queried balances, got %d", 2*n+2, len(balances))
	}
	before, userBefore, userAfter, after := balances[:n], balances[n], balances[n+1], balances[n+2:]

	raw := rawOutAmount(query.Kind, userBefore, userAfter)
	outAmount, err := resolveOutAmount(query, verification, raw)
	if err != nil {
		return types.SimulationReport{}, err
	}
	sellAmount, buyAmount := sellBuyAmounts(query, outAmount)

	lost := rawTokensLost(settlement.Tokens, before, after)
	adjustForSettlementAsParty(lost, verification, types.TokenFromAddress(v.settlementContract), query, sellAmount, buyAmount)

	return types.SimulationReport{
		OutAmount:  bigToAmount(outAmount),
		GasUsed:    gasUsed,
		TokensLost: tokensLostReport(lost, query, sellAmount, buyAmount),
	}, nil
}

func (v *Verifier) fetchAuthenticator(ctx context.Context) (common.Address, error) {
	data, err := encodeAuthenticatorCall()
	if err != nil {
		return common.Address{}, err
	}
	contract := v.settlementContract
	out, err := v.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	return decodeAuthenticatorReturn(out)
}

func (v *Verifier) defaultGas() uint64 {
	if v.cfg.DefaultGas != 0 {
		return v.cfg.DefaultGas
	}
	return defaultGasLimit
}

// classifySimulationError distinguishes a node's outright refusal to run
// the simulation (unsupported method, bad request) from a transient RPC
// failure worth retrying (§4.5.4).
func classifySimulationError(err error) simErrorKind {
	if err == nil {
		return simErrorOther
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case -32601, -32600, -32602:
			return simErrorUnsupported
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "method not found") || strings.Contains(msg, "not supported") || strings.Contains(msg, "bad request") {
		return simErrorUnsupported
	}
	return simErrorTransient
}
