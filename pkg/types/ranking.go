package types

// RankType tags a scored bid's outcome after Phase 2 selection (§3, §4.3).
type RankType string

const (
	RankWinner     RankType = "winner"
	RankNonWinner  RankType = "non_winner"
	RankFilteredOut RankType = "filtered_out"
)

// RankedBid is a Solution paired with its Phase-1 score and Phase-2 outcome.
// This is the terminal phase of the Unscored -> Scored -> Ranked progression
// described in §9: by the time a RankedBid exists it has necessarily passed
// through scoring, so its Score field is always meaningful (unlike an
// unscored Solution).
type RankedBid struct {
	Solution Solution
	Score    Amount
	RankType RankType
}

// Ranking is the per-round output of the WinnerSelector (§3, §4.3).
// Ranked is ordered winners-first, then descending score within each group.
type Ranking struct {
	Ranked          []RankedBid
	FilteredOut     []RankedBid
	ReferenceScores map[Token]Amount // solver -> reference score
}
