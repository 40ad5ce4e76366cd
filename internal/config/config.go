// Package config defines all configuration for the coordination core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via COORD_* environment variables, matching
// the teacher's POLY_*-prefixed override convention.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration tree. Maps directly onto the YAML
// file structure via mapstructure tags.
type Config struct {
	DryRun bool `mapstructure:"dry_run"`

	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	AuctionLoop AuctionLoopConfig `mapstructure:"auction_loop"`
	Arbitrator  ArbitratorConfig  `mapstructure:"arbitrator"`
	Verifier    VerifierConfig    `mapstructure:"verifier"`
	Indexer     IndexerConfig     `mapstructure:"indexer"`
	Solvers     SolversConfig     `mapstructure:"solvers"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
}

// PipelineConfig tunes OrderFilterPipeline (C1, §4.1, §6.5).
//
//   - MinOrderValidityPeriod: orders with valid_to < now + this are excluded.
//   - PriceFactor: limit-order misprice cutoff, rational in (0, 1].
//   - WrappedNativeToken: address whose price must always be present.
type PipelineConfig struct {
	MinOrderValidityPeriod time.Duration `mapstructure:"min_order_validity_period"`
	PriceFactor            float64       `mapstructure:"price_factor"`
	WrappedNativeToken     string        `mapstructure:"wrapped_native_token"`
}

// AuctionLoopConfig tunes C2 (§4.2, §6.5).
type AuctionLoopConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

// ArbitratorConfig tunes C3 (§4.3, §6.5). MaxWinners is the arbitrator cap,
// a positive integer.
type ArbitratorConfig struct {
	MaxWinners int `mapstructure:"max_winners"`
}

// VerifierConfig tunes C5 (§4.5, §6.5).
//
//   - LegacyZeroOriginException preserves the legacy behaviour of marking a
//     zero-tx.origin bid verified despite simulation errors (§4.5.4, §9).
//     Surfaced as a feature flag per the Open Question resolution, default
//     true, intended to be flipped off once solvers migrate away from it.
//   - The four *CodeHex fields are the deployed bytecode of the verifier's
//     mock contracts (§4.5.1 trader proxy / solver helper / spardose /
//     authenticator stub). This repo doesn't vendor or compile the Solidity
//     sources for them, so they're supplied as operator-provided hex, the
//     same way a deployment pipeline would hand over compiled artifacts.
//   - BalanceOverrideSlots maps a token address to the storage-slot index of
//     its `mapping(address => uint256) balances` (§4.5.1 "Balance
//     override"); tokens absent from the map simply don't get a balance
//     override, and verification proceeds using the trader's real balance.
type VerifierConfig struct {
	NodeURL                   string        `mapstructure:"node_url"`
	QuoteInaccuracyLimit      float64       `mapstructure:"quote_inaccuracy_limit"`
	MaxParallelRPCCalls       int           `mapstructure:"max_parallel_rpc_calls"`
	SimulationTimeout         time.Duration `mapstructure:"simulation_timeout"`
	LegacyZeroOriginException bool          `mapstructure:"legacy_zero_origin_exception"`

	SettlementContract string `mapstructure:"settlement_contract"`
	DefaultGas          uint64 `mapstructure:"default_gas"`

	TraderProxyCodeHex       string `mapstructure:"trader_proxy_code_hex"`
	SolverHelperCodeHex      string `mapstructure:"solver_helper_code_hex"`
	SpardoseCodeHex          string `mapstructure:"spardose_code_hex"`
	AuthenticatorStubCodeHex string `mapstructure:"authenticator_stub_code_hex"`

	BalanceOverrideSlots map[string]uint64 `mapstructure:"balance_override_slots"`
}

// IndexerConfig bounds the external EventSource's reorg handling (§6.2, §6.5).
type IndexerConfig struct {
	MaxReorgDepth uint64 `mapstructure:"max_reorg_depth"`
}

// SolverConfig describes one configured solver endpoint.
type SolverConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// RateLimitConfig is the `single_order_solver_rate_limit` option from §6.5:
// {factor, min_backoff, max_backoff}.
type RateLimitConfig struct {
	Factor     float64       `mapstructure:"factor"`
	MinBackoff time.Duration `mapstructure:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

// SolversConfig configures the solver-broadcast client (§4.2.1 supplement)
// and the solver-health monitor (§4.7 supplement).
type SolversConfig struct {
	Endpoints        []SolverConfig  `mapstructure:"endpoints"`
	BroadcastTimeout time.Duration   `mapstructure:"broadcast_timeout"`
	RateLimit        RateLimitConfig `mapstructure:"rate_limit"`

	HealthWindowRounds   int           `mapstructure:"health_window_rounds"`
	HealthMaxFailureRate float64       `mapstructure:"health_max_failure_rate"`
	HealthMinWins        int           `mapstructure:"health_min_wins"`
	HealthCooldown       time.Duration `mapstructure:"health_cooldown"`
}

// DatabaseConfig selects and configures the CompetitionRecorder's backend
// (§4.6). Driver is "postgres" or "sqlite"; the teacher's dual-backend
// pattern (web3guy0-polybot/internal/database/database.go) is preserved.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the observability HTTP server (§6.6): whether it
// runs, its listen address, and the browser origins it accepts. Like the
// verifier, solver, database and logging sections, it holds options beyond
// what spec.md §6.5 names.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: COORD_DATABASE_DSN, COORD_VERIFIER_NODE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("COORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("verifier.legacy_zero_origin_exception", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("COORD_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if url := os.Getenv("COORD_VERIFIER_NODE_URL"); url != "" {
		cfg.Verifier.NodeURL = url
	}
	if os.Getenv("COORD_DRY_RUN") == "true" || os.Getenv("COORD_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, implementing the
// Configuration-fatal error kind of §7: illegal configuration fails fast at
// startup rather than at round time.
func (c *Config) Validate() error {
	if c.Pipeline.PriceFactor <= 0 || c.Pipeline.PriceFactor > 1 {
		return fmt.Errorf("pipeline.price_factor must be in (0, 1]")
	}
	if c.Pipeline.WrappedNativeToken == "" {
		return fmt.Errorf("pipeline.wrapped_native_token is required")
	}
	if c.AuctionLoop.UpdateInterval <= 0 {
		return fmt.Errorf("auction_loop.update_interval must be > 0")
	}
	if c.Arbitrator.MaxWinners <= 0 {
		return fmt.Errorf("arbitrator.max_winners must be > 0")
	}
	if c.Verifier.QuoteInaccuracyLimit <= 0 || c.Verifier.QuoteInaccuracyLimit >= 1 {
		return fmt.Errorf("verifier.quote_inaccuracy_limit must be in (0, 1)")
	}
	if c.Verifier.MaxParallelRPCCalls <= 0 {
		return fmt.Errorf("verifier.max_parallel_rpc_calls must be > 0")
	}
	if c.Verifier.NodeURL == "" {
		return fmt.Errorf("verifier.node_url is required")
	}
	if c.Verifier.SettlementContract == "" {
		return fmt.Errorf("verifier.settlement_contract is required")
	}
	if c.Verifier.TraderProxyCodeHex == "" || c.Verifier.SolverHelperCodeHex == "" || c.Verifier.SpardoseCodeHex == "" || c.Verifier.AuthenticatorStubCodeHex == "" {
		return fmt.Errorf("verifier.{trader_proxy,solver_helper,spardose,authenticator_stub}_code_hex are all required")
	}
	if c.Indexer.MaxReorgDepth == 0 {
		return fmt.Errorf("indexer.max_reorg_depth must be > 0")
	}
	if c.Indexer.MaxReorgDepth > 64 {
		return fmt.Errorf("indexer.max_reorg_depth must not exceed 64 (§6.2 contract)")
	}
	if c.Solvers.RateLimit.Factor <= 0 {
		return fmt.Errorf("solvers.rate_limit.factor must be > 0")
	}
	if c.Solvers.RateLimit.MinBackoff <= 0 || c.Solvers.RateLimit.MaxBackoff < c.Solvers.RateLimit.MinBackoff {
		return fmt.Errorf("solvers.rate_limit.min_backoff/max_backoff misconfigured")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be one of: postgres, sqlite")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (set COORD_DATABASE_DSN)")
	}
	return nil
}
