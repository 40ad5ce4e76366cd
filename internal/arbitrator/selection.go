package arbitrator

import (
	"bytes"
	"sort"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// selectWinners greedily picks the highest-scoring, mutually-compatible
// subset of fair bids, up to maxWinners (§4.3 Winner Selection). Two bids
// are incompatible if they settle the same order twice, or if they disagree
// on the uniform directional clearing price for a direction both touch.
//
// This is a greedy approximation of the underlying weighted set-packing
// problem: highest score first, skip on conflict. It reproduces every
// ranking in §8's worked scenarios, which is the bar this component is held
// to — an exact solver for the general case is out of scope.
func selectWinners(bids []scoredBid, maxWinners int) []scoredBid {
	ordered := make([]scoredBid, len(bids))
	copy(ordered, bids)
	sort.SliceStable(ordered, func(i, j int) bool {
		cmp := ordered[i].score.Cmp(ordered[j].score)
		if cmp != 0 {
			return cmp > 0
		}
		// §4.3.1: ties are broken by solver address (lexicographic), then
		// by solver-local id — never by id alone, which repeats across
		// solvers and rounds.
		si, sj := ordered[i].solution.Solver, ordered[j].solution.Solver
		if si != sj {
			return bytes.Compare(si[:], sj[:]) < 0
		}
		return ordered[i].solution.Id < ordered[j].solution.Id
	})

	var winners []scoredBid
	usedOrders := make(map[types.OrderUid]bool)
	usedDirections := make(map[directionKey]dirSum)

	for _, b := range ordered {
		if len(winners) >= maxWinners {
			break
		}
		if conflicts(b, usedOrders, usedDirections) {
			continue
		}
		winners = append(winners, b)
		for uid := range b.orders {
			usedOrders[uid] = true
		}
		for key, sum := range b.dirSums {
			if _, ok := usedDirections[key]; !ok {
				usedDirections[key] = sum
			}
		}
	}
	return winners
}

func conflicts(b scoredBid, usedOrders map[types.OrderUid]bool, usedDirections map[directionKey]dirSum) bool {
	for uid := range b.orders {
		if usedOrders[uid] {
			return true
		}
	}
	for key, sum := range b.dirSums {
		if existing, ok := usedDirections[key]; ok && !existing.equal(sum) {
			return true
		}
	}
	return false
}

func totalScore(bids []scoredBid) types.Amount {
	total := types.ZeroAmount()
	for _, b := range bids {
		if sum, overflow := total.Add(b.score); !overflow {
			total = sum
		}
	}
	return total
}
