package config

import "testing"

func validConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			PriceFactor:        0.95,
			WrappedNativeToken: "0x0000000000000000000000000000000000000001",
		},
		AuctionLoop: AuctionLoopConfig{UpdateInterval: 12_000_000_000},
		Arbitrator:  ArbitratorConfig{MaxWinners: 3},
		Verifier: VerifierConfig{
			NodeURL:              "http://localhost:8545",
			QuoteInaccuracyLimit: 0.01,
			MaxParallelRPCCalls:  128,
			SettlementContract:   "0x0000000000000000000000000000000000000002",

			TraderProxyCodeHex:       "0x00",
			SolverHelperCodeHex:      "0x00",
			SpardoseCodeHex:          "0x00",
			AuthenticatorStubCodeHex: "0x00",
		},
		Indexer: IndexerConfig{MaxReorgDepth: 64},
		Solvers: SolversConfig{
			RateLimit: RateLimitConfig{Factor: 2, MinBackoff: 1, MaxBackoff: 2},
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:test.db"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsOutOfRangeInaccuracyLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Verifier.QuoteInaccuracyLimit = 1.0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for quote_inaccuracy_limit >= 1")
	}
}

func TestValidateRejectsExcessiveReorgDepth(t *testing.T) {
	cfg := validConfig()
	cfg.Indexer.MaxReorgDepth = 65
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for max_reorg_depth > 64")
	}
}

func TestValidateRejectsZeroMaxWinners(t *testing.T) {
	cfg := validConfig()
	cfg.Arbitrator.MaxWinners = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for max_winners == 0")
	}
}

func TestValidateRejectsUnknownDatabaseDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported database driver")
	}
}
