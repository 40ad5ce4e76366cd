package pipeline

import "github.com/cow-autopilot/coordinator/pkg/types"

// applyFeePolicies wires each order's fresh quote into any price_improvement
// protocol fee that doesn't already carry one (§3: "PriceImprovement...
// surplus is measured against the quoted price"). The fee itself isn't
// charged here — that only happens once a solver reports executed amounts in
// a settlement — this checkpoint only makes sure the reference price a
// PriceImprovement policy measures against is the one in force for this
// round, not a stale quote from a previous round's snapshot.
func applyFeePolicies(orders []types.Order, quotes map[types.OrderUid]types.Quote) {
	for i := range orders {
		o := &orders[i]
		quote, ok := quotes[o.Uid]
		if !ok {
			continue
		}
		for j := range o.ProtocolFees {
			fp := &o.ProtocolFees[j]
			if fp.Kind == types.FeePriceImprovement && fp.Quote == nil {
				q := quote
				fp.Quote = &q
			}
		}
	}
}
