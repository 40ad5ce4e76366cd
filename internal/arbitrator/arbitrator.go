// Package arbitrator implements the WinnerSelector (C3, §3, §4.3): the
// auction mechanism that turns a set of solver-submitted Solutions into a
// Ranking in three phases — filter unfair solutions, mark winners, compute
// reference scores. Grounded on original_source's winner_selection.rs for
// the exact phase semantics and worked scenarios, and on
// internal/strategy/maker.go's per-tick compute-then-classify pipeline
// style for the overall shape of Arbitrate.
package arbitrator

import (
	"bytes"
	"log/slog"
	"sort"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// HealthChecker reports whether a solver is currently excluded from winning
// due to chronic non-settlement (§4.7). Satisfied structurally by
// *solverhealth.Monitor.
type HealthChecker interface {
	IsExcluded(solver types.Token, now time.Time) bool
}

// Arbitrator runs the three-phase auction mechanism described in §4.3.
type Arbitrator struct {
	cfg    config.ArbitratorConfig
	health HealthChecker
	logger *slog.Logger
}

// New constructs an Arbitrator. health may be nil, which disables the
// solver-health exclusion step (every solver is treated as eligible).
func New(cfg config.ArbitratorConfig, health HealthChecker, logger *slog.Logger) *Arbitrator {
	return &Arbitrator{
		cfg:    cfg,
		health: health,
		logger: logger.With("component", "arbitrator"),
	}
}

// Arbitrate runs the entire auction mechanism on the solutions solvers
// submitted for auction. The functions assume the Arbitrator is the only
// thing changing the ordering or the bids during a round.
func (a *Arbitrator) Arbitrate(bids []types.Solution, auction types.Auction, now time.Time) types.Ranking {
	var scored []scoredBid
	var healthExcluded []scoredBid

	for _, bid := range bids {
		sb := score(bid, auction)
		if a.health != nil && a.health.IsExcluded(bid.Solver, now) {
			healthExcluded = append(healthExcluded, sb)
			continue
		}
		scored = append(scored, sb)
	}

	fair, unfair := filterFair(scored)
	winners := selectWinners(fair, a.cfg.MaxWinners)
	winnerSet := make(map[bidIdentity]bool, len(winners))
	for _, w := range winners {
		winnerSet[bidIdentityOf(w.solution)] = true
	}

	ranked := rankedBids(fair, winnerSet)
	filteredOut := rankedFilteredOut(unfair, healthExcluded)
	referenceScores := a.computeReferenceScores(fair, winners, a.cfg.MaxWinners)

	if len(unfair) > 0 || len(healthExcluded) > 0 {
		a.logger.Info("filtered solutions out of the auction",
			"unfair", len(unfair), "health_excluded", len(healthExcluded))
	}

	return types.Ranking{
		Ranked:          ranked,
		FilteredOut:     filteredOut,
		ReferenceScores: referenceScores,
	}
}

// computeReferenceScores gives every winning solver a measure of how much
// better each order got executed because it participated: the total score
// of the winning set had that solver never submitted anything (§3
// "Reference Score").
func (a *Arbitrator) computeReferenceScores(fair, winners []scoredBid, maxWinners int) map[types.Token]types.Amount {
	winningSolvers := make(map[types.Token]struct{})
	for _, w := range winners {
		winningSolvers[w.solution.Solver] = struct{}{}
	}

	scores := make(map[types.Token]types.Amount, len(winningSolvers))
	for solver := range winningSolvers {
		var without []scoredBid
		for _, b := range fair {
			if b.solution.Solver == solver {
				continue
			}
			without = append(without, b)
		}
		counterfactual := selectWinners(without, maxWinners)
		scores[solver] = totalScore(counterfactual)
	}
	return scores
}

// bidIdentity is a solution's identity within a round: solver address plus
// the solver-local id it chose (§3 "id (solver-local u64)"). The local id
// alone is neither unique within a round (two solvers may both number their
// solutions 0/1) nor across rounds, so nothing may key off Id without Solver.
type bidIdentity struct {
	Solver types.Token
	ID     uint64
}

func bidIdentityOf(s types.Solution) bidIdentity {
	return bidIdentity{Solver: s.Solver, ID: s.Id}
}

func rankedBids(fair []scoredBid, winners map[bidIdentity]bool) []types.RankedBid {
	ranked := make([]types.RankedBid, 0, len(fair))
	for _, b := range fair {
		rankType := types.RankNonWinner
		if winners[bidIdentityOf(b.solution)] {
			rankType = types.RankWinner
		}
		ranked = append(ranked, types.RankedBid{
			Solution: b.solution,
			Score:    b.score,
			RankType: rankType,
		})
	}
	sortRanked(ranked)
	return ranked
}

func rankedFilteredOut(groups ...[]scoredBid) []types.RankedBid {
	var out []types.RankedBid
	for _, g := range groups {
		for _, b := range g {
			out = append(out, types.RankedBid{
				Solution: b.solution,
				Score:    b.score,
				RankType: types.RankFilteredOut,
			})
		}
	}
	return out
}

// sortRanked orders winners before non-winners, and within each group higher
// score before lower score; ties are broken by solver address (lexicographic)
// then by solver-local id (§4.3.1, §8 "Deterministic arbitration" — the
// output order must be fully determined by (score desc, solver addr asc), or
// permuting the input bids would change the published order).
func sortRanked(ranked []types.RankedBid) {
	sort.SliceStable(ranked, func(i, j int) bool {
		wi, wj := ranked[i].RankType == types.RankWinner, ranked[j].RankType == types.RankWinner
		if wi != wj {
			return wi
		}
		cmp := ranked[i].Score.Cmp(ranked[j].Score)
		if cmp != 0 {
			return cmp > 0
		}
		si, sj := ranked[i].Solution.Solver, ranked[j].Solution.Solver
		if si != sj {
			return bytes.Compare(si[:], sj[:]) < 0
		}
		return ranked[i].Solution.Id < ranked[j].Solution.Id
	})
}
