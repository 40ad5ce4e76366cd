package solverhealth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

func testCfg() config.SolversConfig {
	return config.SolversConfig{
		HealthWindowRounds:   5,
		HealthMaxFailureRate: 0.5,
		HealthMinWins:        3,
		HealthCooldown:       time.Minute,
	}
}

func TestMonitorExcludesAfterRepeatedNonSettlement(t *testing.T) {
	m := NewMonitor(testCfg(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	solver := types.Token{1}
	now := time.Unix(1000, 0)

	if m.IsExcluded(solver, now) {
		t.Fatal("fresh solver should not start excluded")
	}

	m.RecordSettlement(solver, false, now)
	m.RecordSettlement(solver, false, now)
	if m.IsExcluded(solver, now) {
		t.Fatal("should not exclude before HealthMinWins samples")
	}

	m.RecordSettlement(solver, false, now)
	if !m.IsExcluded(solver, now) {
		t.Fatal("expected exclusion once failure rate crosses threshold with enough samples")
	}
}

func TestMonitorExclusionExpiresAfterCooldown(t *testing.T) {
	m := NewMonitor(testCfg(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	solver := types.Token{2}
	now := time.Unix(2000, 0)

	for i := 0; i < 3; i++ {
		m.RecordSettlement(solver, false, now)
	}
	if !m.IsExcluded(solver, now) {
		t.Fatal("expected solver excluded immediately after crossing threshold")
	}
	if m.IsExcluded(solver, now.Add(2*time.Minute)) {
		t.Fatal("expected exclusion to expire after the cooldown window")
	}
}

func TestMonitorDoesNotExcludeHealthySolver(t *testing.T) {
	m := NewMonitor(testCfg(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	solver := types.Token{3}
	now := time.Unix(3000, 0)

	for i := 0; i < 5; i++ {
		m.RecordSettlement(solver, true, now)
	}
	if m.IsExcluded(solver, now) {
		t.Fatal("a consistently-settling solver should never be excluded")
	}
}
