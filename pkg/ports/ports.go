// Package ports declares the external traits the coordination core consumes
// (spec §6.1, §6.2). Each is genuinely external per §1's Non-goals — order
// intake, indexing, submission, gas/price oracles, and bad-token detection
// are all out of scope here — so this package holds only contracts plus
// in-memory fakes used by tests; it never ships a live implementation.
package ports

import (
	"context"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// SolvableOrdersSnapshot is the consistent-as-of-call-time read returned by
// OrderStore.SolvableOrders (§6.1).
type SolvableOrdersSnapshot struct {
	Orders              []types.Order
	Quotes              map[types.OrderUid]types.Quote
	LatestSettlementBlock uint64
}

// OrderStore is the external order-intake/storage collaborator (§1 Non-goal,
// §6.1).
type OrderStore interface {
	SolvableOrders(ctx context.Context, minValidTo uint32) (SolvableOrdersSnapshot, error)
}

// BalanceQuery identifies a single balance lookup (§6.1).
type BalanceQuery struct {
	Owner  types.Token
	Token  types.Token
	Source types.SellTokenSource
}

// BalanceResult pairs a BalanceQuery with its outcome; a failed lookup
// carries Err rather than failing the whole batch, matching §4.1.2's
// Recoverable failure semantics (a single balance-fetch error just drops
// that order for the round).
type BalanceResult struct {
	Amount types.Amount
	Err    error
}

// BalanceFetcher reads on-chain ERC20/internal/external balances (§6.1).
type BalanceFetcher interface {
	GetBalances(ctx context.Context, queries []BalanceQuery) ([]BalanceResult, error)
}

// SignatureCheck is a single EIP-1271 validation request (§4.1 checkpoint 2,
// §6.1): (signer, order digest, signature bytes, pre-interaction calldata).
type SignatureCheck struct {
	Signer          types.Token
	OrderDigest     [32]byte
	SignatureBytes  []byte
	PreInteractions [][]byte
}

// SignatureValidator batch-validates EIP-1271 contract signatures (§6.1).
// A nil error at index i means the signature is valid.
type SignatureValidator interface {
	Validate(ctx context.Context, checks []SignatureCheck) ([]error, error)
}

// TokenQuality is the verdict from BadTokenDetector.Detect (§6.1).
type TokenQuality struct {
	Bad    bool
	Reason string
}

// BadTokenDetector flags ERC20s with nonstandard/malicious transfer
// behaviour (§6.1).
type BadTokenDetector interface {
	Detect(ctx context.Context, token types.Token) (TokenQuality, error)
}

// NativePriceOracle estimates and caches native-denominated token prices,
// and accepts an advisory fetch-priority hint (§4.1.1, §6.1).
type NativePriceOracle interface {
	EstimateNativePrice(ctx context.Context, token types.Token) (float64, error)
	GetCachedPrices(tokens []types.Token) map[types.Token]types.NativePrice
	ReplaceHighPriority(tokens []types.Token)
}

// OrderEventKind flags why an order left the pipeline (§4.1).
type OrderEventKind string

const (
	EventInvalid  OrderEventKind = "invalid"
	EventFiltered OrderEventKind = "filtered"
)

// OrderEvent records an order's fate for metrics/bookkeeping (§4.1).
type OrderEvent struct {
	Uid    types.OrderUid
	Kind   OrderEventKind
	Reason string
}

// IndexedEvent is a single on-chain order-placement event observed by the
// external indexer, delivered in (block_number, log_index) order (§6.2).
type IndexedEvent struct {
	BlockNumber uint64
	LogIndex    uint64
	OrderUid    types.OrderUid
}

// EventSource is the external on-chain indexing collaborator (§1 Non-goal,
// §6.2). Reorg depth is bounded at MaxReorgDepth (config); events from
// reorged blocks are replaced, not duplicated.
type EventSource interface {
	LastEventBlock(ctx context.Context) (uint64, error)
	AppendEvents(ctx context.Context, events []IndexedEvent) error
	ReplaceEvents(ctx context.Context, events []IndexedEvent, fromBlock, toBlock uint64) error
}

// Submitter hands a verified, encoded settlement to the external
// transaction-submission/mempool strategy (§1 Non-goal, §6.1). No concrete
// implementation is provided.
type Submitter interface {
	Submit(ctx context.Context, encodedSettlementCalldata []byte) (txHash [32]byte, err error)
}

// CowAmmRegistry tracks on-chain CoW-AMM addresses whose tokens must be
// priced alongside ordinary order tokens (§4.1, §4.1.3 supplement).
type CowAmmRegistry interface {
	Refresh(ctx context.Context) error
	Tokens() []types.Token
}

// BannedUsers is consulted by the pipeline's first checkpoint (§4.1) to drop
// orders whose owner or receiver has been sanctioned.
type BannedUsers interface {
	IsBanned(owner types.Token) bool
}
