package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cow-autopilot/coordinator/internal/config"
)

// DashboardSnapshot is the complete point-in-time state served by
// /api/snapshot and pushed to every newly connected WebSocket client.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// CurrentAuction is the most recent round AuctionLoop published, or nil
	// before the first round.
	CurrentAuction *AuctionSummary `json:"current_auction,omitempty"`

	// ExcludedSolvers lists solvers currently under a §4.7 health cooldown.
	ExcludedSolvers []string `json:"excluded_solvers"`

	Config ConfigSummary `json:"config"`
}

// AuctionSummary is the dashboard-facing view of a types.Auction: enough to
// show round identity and size without re-serializing every order and
// price, which the teacher's full MarketStatus equivalent never needed to
// do either.
type AuctionSummary struct {
	ID         uint64 `json:"id"`
	Block      uint64 `json:"block"`
	OrderCount int    `json:"order_count"`
}

// ConfigSummary is the operator-facing subset of config.Config: the knobs
// that shape round-to-round behavior, without the verifier's bytecode
// fields or solver endpoint URLs.
type ConfigSummary struct {
	DryRun bool `json:"dry_run"`

	UpdateInterval string `json:"update_interval"`
	MaxWinners     int    `json:"max_winners"`

	// Ratio fields render as decimal.Decimal rather than float64 so the
	// dashboard shows the operator's configured value exactly (e.g.
	// "0.02"), not whatever binary floating-point approximates it as.
	PriceFactor            decimal.Decimal `json:"price_factor"`
	MinOrderValidityPeriod string          `json:"min_order_validity_period"`

	QuoteInaccuracyLimit decimal.Decimal `json:"quote_inaccuracy_limit"`
	SimulationTimeout    string          `json:"simulation_timeout"`

	HealthWindowRounds   int             `json:"health_window_rounds"`
	HealthMaxFailureRate decimal.Decimal `json:"health_max_failure_rate"`
	HealthCooldown       string          `json:"health_cooldown"`
}

// NewConfigSummary builds a ConfigSummary from the live config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		DryRun: cfg.DryRun,

		UpdateInterval: cfg.AuctionLoop.UpdateInterval.String(),
		MaxWinners:     cfg.Arbitrator.MaxWinners,

		PriceFactor:            decimal.NewFromFloat(cfg.Pipeline.PriceFactor),
		MinOrderValidityPeriod: cfg.Pipeline.MinOrderValidityPeriod.String(),

		QuoteInaccuracyLimit: decimal.NewFromFloat(cfg.Verifier.QuoteInaccuracyLimit),
		SimulationTimeout:    cfg.Verifier.SimulationTimeout.String(),

		HealthWindowRounds:   cfg.Solvers.HealthWindowRounds,
		HealthMaxFailureRate: decimal.NewFromFloat(cfg.Solvers.HealthMaxFailureRate),
		HealthCooldown:       cfg.Solvers.HealthCooldown.String(),
	}
}
