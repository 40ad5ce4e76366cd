package recorder

import "time"

// The five tables of §4.6: one auction row per round, one solution row per
// submitted bid (winner or not), one trade row per order a solution
// executes, one JIT-order-metadata row per trade whose order never existed
// in the main order table, and one reference-score row per winning solver.
// Amounts and tokens are stored as their canonical decimal/hex strings
// (types.Amount.String() / types.Token.String()) rather than native numeric
// columns, since uint256 and 20-byte addresses don't fit either backend's
// integer types — the same reason the teacher stores money as
// shopspring/decimal rather than float64.

type auctionRow struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Block    uint64 `gorm:"index"`
	Deadline uint64 `gorm:"index"`

	// OrderUIDs and Prices are JSON-encoded: a round's order set and price
	// vector are variable-length collections with no natural column shape
	// portable across postgres and sqlite.
	OrderUIDsJSON string `gorm:"column:order_uids_json;type:text"`
	PricesJSON    string `gorm:"column:prices_json;type:text"`

	CreatedAt time.Time

	Solutions       []solutionRow       `gorm:"foreignKey:AuctionID"`
	ReferenceScores []referenceScoreRow `gorm:"foreignKey:AuctionID"`
}

// solutionRow's primary key is a surrogate autoincrement RowID rather than
// the solver's own SolutionID: SolutionID is solver-local (§3 "id
// (solver-local u64)"), so it is neither unique within a round — two
// solvers may each number their solutions 0/1 — nor across rounds, where the
// same local id recurs every round. A solution's real identity for lookups
// is (AuctionID, Solver, SolutionID).
type solutionRow struct {
	RowID      uint64 `gorm:"column:row_id;primaryKey;autoIncrement"`
	AuctionID  uint64 `gorm:"index:idx_solution_identity,unique"`
	SolutionID uint64 `gorm:"column:solution_id;index:idx_solution_identity,unique"`

	Solver             string `gorm:"index;index:idx_solution_identity,unique"`
	IsWinner           bool
	FilteredOut        bool
	Score              string
	ClearingPricesJSON string `gorm:"column:clearing_prices_json;type:text"`

	// TxHash and SettledAtBlock are filled in later by RecordSettlement,
	// once an on-chain observation of this solution's submission exists —
	// they are nil/empty for the common case of a solution that was never
	// a winner, or a winner whose settlement hasn't landed (yet).
	TxHash         string  `gorm:"index"`
	SettledAtBlock *uint64 `gorm:"column:settled_at_block"`

	Trades           []tradeRow            `gorm:"foreignKey:SolutionRowID;references:RowID"`
	JitOrderMetadata []jitOrderMetadataRow `gorm:"foreignKey:SolutionRowID;references:RowID"`
}

type tradeRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	SolutionRowID uint64 `gorm:"column:solution_row_id;index"`

	OrderUID string `gorm:"index"`
	Side     string

	SellToken string
	BuyToken  string

	SellAmount   string
	BuyAmount    string
	ExecutedSell string
	ExecutedBuy  string

	JitOrder bool
	JitOwner string
}

// jitOrderMetadataRow is the "second table" §4.6 calls for: the token pair,
// limit amounts, and side of a JIT order, kept separate from tradeRow
// because JIT orders never appear in the main order table and downstream
// audit consumers look them up differently (by order uid, not by having
// first resolved an Order record).
type jitOrderMetadataRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	SolutionRowID uint64 `gorm:"column:solution_row_id;index"`

	OrderUID string `gorm:"index"`
	Side     string

	SellToken  string
	BuyToken   string
	SellAmount string
	BuyAmount  string
}

type referenceScoreRow struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64 `gorm:"index"`

	Solver string `gorm:"index"`
	Score  string
}

func (auctionRow) TableName() string          { return "auctions" }
func (solutionRow) TableName() string         { return "solutions" }
func (tradeRow) TableName() string            { return "trades" }
func (jitOrderMetadataRow) TableName() string { return "jit_order_metadata" }
func (referenceScoreRow) TableName() string   { return "reference_scores" }
