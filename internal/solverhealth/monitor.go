// Package solverhealth implements the §4.7 supplement: a rolling in-memory
// window of each solver's (won, settled) history, used to exclude solvers
// that win rounds but then fail to settle on-chain, without waiting on a
// database round-trip every auction. It approximates the same two
// conditions CompetitionRecorder answers durably
// (find_non_settling_solvers, find_low_settling_solvers) so the arbitrator
// can consult solver health synchronously, in-process, every round.
//
// Grounded on internal/risk/manager.go's mutex-guarded per-key state map
// with a cooldown-bounded kill switch, and internal/strategy/flow_tracker.go's
// rolling window of recent outcomes reduced to a single score.
package solverhealth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

// outcome is one round's result for a solver that won it.
type outcome struct {
	settled bool
}

type solverState struct {
	mu            sync.Mutex
	outcomes      []outcome // ring buffer, bounded to HealthWindowRounds
	next          int
	count         int
	excludedUntil time.Time
}

func (s *solverState) record(settled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) < cap(s.outcomes) {
		s.outcomes = append(s.outcomes, outcome{settled: settled})
	} else {
		s.outcomes[s.next] = outcome{settled: settled}
	}
	s.next = (s.next + 1) % cap(s.outcomes)
	s.count++
}

func (s *solverState) failureRate() (rate float64, samples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return 0, 0
	}
	failures := 0
	for _, o := range s.outcomes {
		if !o.settled {
			failures++
		}
	}
	return float64(failures) / float64(len(s.outcomes)), len(s.outcomes)
}

func (s *solverState) exclude(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excludedUntil = until
}

func (s *solverState) isExcluded(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.excludedUntil)
}

// ExclusionSignal is emitted whenever a solver crosses the failure-rate
// threshold and is cooled down.
type ExclusionSignal struct {
	Solver types.Token
	Reason string
	Until  time.Time
}

// Monitor tracks per-solver settlement health and excludes chronically
// non-settling solvers from winner selection for a cooldown period.
type Monitor struct {
	cfg    config.SolversConfig
	logger *slog.Logger

	mu      sync.RWMutex
	solvers map[types.Token]*solverState

	signals chan ExclusionSignal
}

// NewMonitor constructs a Monitor from the solvers health-tuning config.
func NewMonitor(cfg config.SolversConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		logger:  logger.With("component", "solverhealth"),
		solvers: make(map[types.Token]*solverState),
		signals: make(chan ExclusionSignal, 16),
	}
}

// Signals returns the channel exclusion events are published on, for the
// dashboard/metrics layer to consume.
func (m *Monitor) Signals() <-chan ExclusionSignal {
	return m.signals
}

func (m *Monitor) stateFor(solver types.Token) *solverState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solvers[solver]
	if !ok {
		window := m.cfg.HealthWindowRounds
		if window <= 0 {
			window = 1
		}
		s = &solverState{outcomes: make([]outcome, 0, window)}
		m.solvers[solver] = s
	}
	return s
}

// RecordSettlement records the outcome of a won round's settlement.
// cmd/autopilot calls it after each winning settlement's submission attempt:
// settled is true iff the submitter accepted the transaction.
func (m *Monitor) RecordSettlement(solver types.Token, settled bool, now time.Time) {
	s := m.stateFor(solver)
	s.record(settled)

	rate, samples := s.failureRate()
	if samples < m.cfg.HealthMinWins {
		return // not enough history to judge yet
	}
	if rate > m.cfg.HealthMaxFailureRate {
		until := now.Add(m.cfg.HealthCooldown)
		s.exclude(until)
		m.logger.Warn("excluding solver for chronic non-settlement",
			"solver", solver.String(), "failure_rate", rate, "until", until)
		select {
		case m.signals <- ExclusionSignal{Solver: solver, Reason: "non-settling", Until: until}:
		default:
		}
	}
}

// IsExcluded reports whether solver is currently under a health cooldown.
// Consulted by the arbitrator before a solver's bids are eligible to win
// (§4.7).
func (m *Monitor) IsExcluded(solver types.Token, now time.Time) bool {
	m.mu.RLock()
	s, ok := m.solvers[solver]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return s.isExcluded(now)
}

// ExcludedSolvers returns every solver currently under a health cooldown,
// for the observability surface's snapshot endpoint.
func (m *Monitor) ExcludedSolvers(now time.Time) []types.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var excluded []types.Token
	for solver, s := range m.solvers {
		if s.isExcluded(now) {
			excluded = append(excluded, solver)
		}
	}
	return excluded
}
