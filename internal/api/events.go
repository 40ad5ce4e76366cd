package api

import (
	"time"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// DashboardEvent is the wrapper for every event pushed to connected
// WebSocket clients (§6.6). The teacher's per-market-fill event stream
// generalizes here to per-round coordination events: a round publishing, a
// ranking being decided, a bid being verified, and a solver being excluded
// for chronic non-settlement.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "round", "ranking", "verification", "solver_excluded"
	Timestamp time.Time   `json:"timestamp"`
	AuctionID uint64      `json:"auction_id,omitempty"`
	Data      interface{} `json:"data"`
}

// RoundEvent announces a freshly published auction.
type RoundEvent struct {
	AuctionID  uint64 `json:"auction_id"`
	Block      uint64 `json:"block"`
	OrderCount int    `json:"order_count"`
}

// RankingEvent announces the arbitrator's outcome for a round.
type RankingEvent struct {
	AuctionID   uint64   `json:"auction_id"`
	Winners     []string `json:"winners"`      // solver addresses
	NonWinners  int      `json:"non_winners"`
	FilteredOut int      `json:"filtered_out"`
}

// VerificationEvent announces a single bid's TradeVerifier outcome.
type VerificationEvent struct {
	AuctionID  uint64 `json:"auction_id"`
	SolutionID uint64 `json:"solution_id"`
	Solver     string `json:"solver"`
	Verified   bool   `json:"verified"`
	Rejected   bool   `json:"rejected"`
	Error      string `json:"error,omitempty"`
}

// SolverExcludedEvent announces a solver entering a health cooldown
// (§4.7), mirroring solverhealth.ExclusionSignal.
type SolverExcludedEvent struct {
	Solver string    `json:"solver"`
	Reason string    `json:"reason"`
	Until  time.Time `json:"until"`
}

func NewRoundEvent(auctionID, block uint64, orderCount int) RoundEvent {
	return RoundEvent{AuctionID: auctionID, Block: block, OrderCount: orderCount}
}

func NewRankingEvent(auctionID uint64, ranking types.Ranking) RankingEvent {
	var winners []string
	for _, bid := range ranking.Ranked {
		if bid.RankType == types.RankWinner {
			winners = append(winners, bid.Solution.Solver.String())
		}
	}
	nonWinners := 0
	for _, bid := range ranking.Ranked {
		if bid.RankType == types.RankNonWinner {
			nonWinners++
		}
	}
	return RankingEvent{
		AuctionID:   auctionID,
		Winners:     winners,
		NonWinners:  nonWinners,
		FilteredOut: len(ranking.FilteredOut),
	}
}

func NewVerificationEvent(auctionID, solutionID uint64, solver types.Token, report types.SimulationReport, err error) VerificationEvent {
	evt := VerificationEvent{
		AuctionID:  auctionID,
		SolutionID: solutionID,
		Solver:     solver.String(),
		Verified:   report.Verified,
	}
	if err != nil {
		evt.Rejected = true
		evt.Error = err.Error()
	}
	return evt
}

func NewSolverExcludedEvent(solver types.Token, reason string, until time.Time) SolverExcludedEvent {
	return SolverExcludedEvent{Solver: solver.String(), Reason: reason, Until: until}
}
