package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus counters/gauges exported on /metrics. The
// teacher's go.mod already carries prometheus/client_golang but never wired
// it to a handler; this is that wiring, named for this core's domain
// instead of market-making fills and positions.
var (
	RoundsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_rounds_published_total",
		Help: "Auctions published by the auction loop.",
	})

	BidsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_bids_received_total",
		Help: "Solutions received from solvers, labeled by solver.",
	}, []string{"solver"})

	WinnersSelected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coordinator_winners_selected_total",
		Help: "Winning bids selected across all rounds.",
	})

	VerificationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_verification_results_total",
		Help: "Trade verification outcomes, labeled by result.",
	}, []string{"result"}) // "verified", "rejected"

	SolverExclusions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordinator_solver_exclusions_total",
		Help: "Solvers placed under a health cooldown, labeled by solver.",
	}, []string{"solver"})

	ExcludedSolversGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coordinator_excluded_solvers",
		Help: "Solvers currently under a health cooldown.",
	})
)
