package recorder

import (
	"encoding/hex"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// RoundRecord is everything CompetitionRecorder persists for one round
// (§4.6): the auction itself, the full ranking the arbitrator produced, and
// the deadline consumers use to decide whether the round has settled yet.
// AuctionLoop/arbitrator output maps onto this directly — the recorder
// never reaches back into the pipeline or arbitrator for more context.
type RoundRecord struct {
	Auction  types.Auction
	Deadline uint64
	Ranking  types.Ranking
}

// Record is the full per-round record returned by LoadByID/LoadByTxHash:
// the audit/rewards view over one round, flattened back out of the
// gorm row shapes into domain types.
type Record struct {
	AuctionID uint64
	Block     uint64
	Deadline  uint64
	OrderUIDs []types.OrderUid
	Prices    map[types.Token]types.Amount

	Solutions       []SolutionRecord
	ReferenceScores map[types.Token]types.Amount
}

// SolutionRecord is one persisted solution, with its observed on-chain
// settlement state if any has been recorded.
type SolutionRecord struct {
	// ID is the solver-local id from §3 ("id (solver-local u64)") — unique
	// only in combination with Solver, never on its own.
	ID             uint64
	Solver         types.Token
	IsWinner       bool
	FilteredOut    bool
	Score          types.Amount
	ClearingPrices map[types.Token]types.Amount
	TxHash         string
	SettledAtBlock *uint64

	Trades           []types.TradedOrder
	JitOrderMetadata []JitOrderMetadata
}

// JitOrderMetadata is the token pair/limit-amounts/side record kept for a
// trade whose order never existed in the main order table (§4.6).
type JitOrderMetadata struct {
	OrderUid   types.OrderUid
	Side       types.OrderKind
	SellToken  types.Token
	BuyToken   types.Token
	SellAmount types.Amount
	BuyAmount  types.Amount
}

func orderUidHex(u types.OrderUid) string { return hex.EncodeToString(u[:]) }

func orderUidFromHex(s string) (types.OrderUid, error) {
	var uid types.OrderUid
	b, err := hex.DecodeString(s)
	if err != nil {
		return uid, err
	}
	copy(uid[:], b)
	return uid, nil
}

func tokenHex(t types.Token) string { return t.String() }

func tokenFromHex(s string) (types.Token, error) {
	return types.ParseToken(s)
}
