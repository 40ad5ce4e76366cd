package engine

import (
	"sync"

	"github.com/cow-autopilot/coordinator/pkg/types"
)

// AuctionCache is the single-slot, mutex-guarded holder of the most recently
// published Auction (§4.2, §5). Only one auction is ever live at a time —
// a fresh round's publish replaces the previous one outright, matching the
// "latest wins" single-slot semantics solvers and the dashboard read from.
type AuctionCache struct {
	mu       sync.RWMutex
	current  types.Auction
	hasValue bool
}

// Store replaces the cached auction. Called once per round by AuctionLoop.
func (c *AuctionCache) Store(a types.Auction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = a
	c.hasValue = true
}

// Load returns a deep-enough clone of the current auction, safe to read
// concurrently with the next Store. ok is false before the first round
// publishes anything.
func (c *AuctionCache) Load() (auction types.Auction, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasValue {
		return types.Auction{}, false
	}
	return c.current.Clone(), true
}
