package api

import (
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// SnapshotProvider gives the API layer read access to the running
// coordination core's live state, without the api package depending
// directly on engine/solverhealth (avoiding an import cycle back from
// cmd/autopilot's wiring).
type SnapshotProvider interface {
	// CurrentAuction returns the most recently published round, mirroring
	// engine.AuctionCache.Load.
	CurrentAuction() (types.Auction, bool)
	// ExcludedSolvers returns solvers presently under a health cooldown,
	// mirroring solverhealth.Monitor.ExcludedSolvers.
	ExcludedSolvers(now time.Time) []types.Token
}

// BuildSnapshot aggregates live state into a DashboardSnapshot.
func BuildSnapshot(provider SnapshotProvider, cfg config.Config) DashboardSnapshot {
	snap := DashboardSnapshot{
		Timestamp: time.Now(),
		Config:    NewConfigSummary(cfg),
	}

	if auction, ok := provider.CurrentAuction(); ok {
		snap.CurrentAuction = &AuctionSummary{
			ID:         auction.Id,
			Block:      auction.Block,
			OrderCount: len(auction.Orders),
		}
	}

	for _, solver := range provider.ExcludedSolvers(snap.Timestamp) {
		snap.ExcludedSolvers = append(snap.ExcludedSolvers, solver.String())
	}

	return snap
}
