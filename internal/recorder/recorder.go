// Package recorder implements the CompetitionRecorder (C6, §4.6): durable
// per-round storage of auctions, solutions, trades, and reference scores,
// plus the audit and solver-health queries built on top of them. Grounded
// on web3guy0-polybot/internal/database/database.go's dual postgres/sqlite
// gorm backend — same New(driver, dsn) dial-then-AutoMigrate shape,
// generalized from the teacher's single-connection-string dbPath to this
// repo's explicit DatabaseConfig{Driver, DSN}.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cow-autopilot/coordinator/internal/config"
	"github.com/cow-autopilot/coordinator/pkg/types"
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Recorder is the CompetitionRecorder.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New dials the configured backend and migrates the schema.
func New(cfg config.DatabaseConfig, logger *slog.Logger) (*Recorder, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("recorder: unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s database: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(
		&auctionRow{}, &solutionRow{}, &tradeRow{}, &jitOrderMetadataRow{}, &referenceScoreRow{},
	); err != nil {
		return nil, fmt.Errorf("recorder: migrate schema: %w", err)
	}

	logger.Info("competition recorder ready", "driver", cfg.Driver)
	return &Recorder{db: db, logger: logger.With("component", "recorder")}, nil
}

// RecordRound persists one round's auction, every submitted solution
// (winner or not), their trades and JIT-order metadata, and the reference
// scores — all inside a single transaction, per §4.6's storage invariant
// that a round's inserts all commit or all roll back together.
func (r *Recorder) RecordRound(ctx context.Context, round RoundRecord) error {
	orderUIDs := make([]types.OrderUid, len(round.Auction.Orders))
	for i, o := range round.Auction.Orders {
		orderUIDs[i] = o.Uid
	}
	orderUIDsJSON, err := marshalOrderUIDs(orderUIDs)
	if err != nil {
		return err
	}
	pricesJSON, err := marshalPrices(round.Auction.Prices)
	if err != nil {
		return err
	}

	auction := auctionRow{
		ID:            round.Auction.Id,
		Block:         round.Auction.Block,
		Deadline:      round.Deadline,
		OrderUIDsJSON: orderUIDsJSON,
		PricesJSON:    pricesJSON,
	}

	solutions := make([]solutionRow, 0, len(round.Ranking.Ranked)+len(round.Ranking.FilteredOut))
	for _, bid := range round.Ranking.Ranked {
		row, err := toSolutionRow(round.Auction.Id, bid)
		if err != nil {
			return err
		}
		solutions = append(solutions, row)
	}
	for _, bid := range round.Ranking.FilteredOut {
		row, err := toSolutionRow(round.Auction.Id, bid)
		if err != nil {
			return err
		}
		solutions = append(solutions, row)
	}

	referenceScores := make([]referenceScoreRow, 0, len(round.Ranking.ReferenceScores))
	for solver, score := range round.Ranking.ReferenceScores {
		referenceScores = append(referenceScores, referenceScoreRow{
			AuctionID: round.Auction.Id,
			Solver:    tokenHex(solver),
			Score:     score.String(),
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&auction).Error; err != nil {
			return fmt.Errorf("insert auction: %w", err)
		}
		for i := range solutions {
			if err := tx.Create(&solutions[i]).Error; err != nil {
				return fmt.Errorf("insert solution: %w", err)
			}
		}
		if len(referenceScores) > 0 {
			if err := tx.Create(&referenceScores).Error; err != nil {
				return fmt.Errorf("insert reference scores: %w", err)
			}
		}
		return nil
	})
}

// toSolutionRow flattens one RankedBid into its solution row plus nested
// trade/JIT-metadata rows (gorm's Create on an association-populated struct
// inserts the children transactionally alongside the parent).
func toSolutionRow(auctionID uint64, bid types.RankedBid) (solutionRow, error) {
	clearingPricesJSON, err := marshalPrices(bid.Solution.ClearingPrices)
	if err != nil {
		return solutionRow{}, err
	}

	row := solutionRow{
		AuctionID:          auctionID,
		SolutionID:         bid.Solution.Id,
		Solver:             tokenHex(bid.Solution.Solver),
		IsWinner:           bid.RankType == types.RankWinner,
		FilteredOut:        bid.RankType == types.RankFilteredOut,
		Score:              bid.Score.String(),
		ClearingPricesJSON: clearingPricesJSON,
	}

	for _, trade := range bid.Solution.Trades {
		row.Trades = append(row.Trades, tradeRow{
			OrderUID:     orderUidHex(trade.OrderUid),
			Side:         string(trade.Side),
			SellToken:    tokenHex(trade.SellToken),
			BuyToken:     tokenHex(trade.BuyToken),
			SellAmount:   trade.SellAmount.String(),
			BuyAmount:    trade.BuyAmount.String(),
			ExecutedSell: trade.ExecutedSell.String(),
			ExecutedBuy:  trade.ExecutedBuy.String(),
			JitOrder:     trade.JitOrder,
			JitOwner:     tokenHex(trade.JitOwner),
		})
		if trade.JitOrder {
			row.JitOrderMetadata = append(row.JitOrderMetadata, jitOrderMetadataRow{
				OrderUID:   orderUidHex(trade.OrderUid),
				Side:       string(trade.Side),
				SellToken:  tokenHex(trade.SellToken),
				BuyToken:   tokenHex(trade.BuyToken),
				SellAmount: trade.SellAmount.String(),
				BuyAmount:  trade.BuyAmount.String(),
			})
		}
	}

	return row, nil
}

// RecordSettlement marks a winning solution as observed on-chain. Called by
// the event indexer once a settlement transaction lands; solutions with no
// RecordSettlement call are "not yet (or never) settled" for the purposes
// of FindNonSettlingSolvers/FindLowSettlingSolvers/FetchInFlightOrders.
//
// solutionID is the solver-local id from §3, not globally unique, so the
// solution is identified by (auctionID, solver, solutionID) together, the
// same composite identity toSolutionRow persists it under.
func (r *Recorder) RecordSettlement(ctx context.Context, auctionID uint64, solver types.Token, solutionID uint64, txHash string, block uint64) error {
	result := r.db.WithContext(ctx).Model(&solutionRow{}).
		Where("auction_id = ? AND solver = ? AND solution_id = ?", auctionID, tokenHex(solver), solutionID).
		Updates(map[string]any{"tx_hash": txHash, "settled_at_block": block})
	if result.Error != nil {
		return fmt.Errorf("record settlement: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record settlement: no solution for auction %d solver %s id %d", auctionID, solver, solutionID)
	}
	return nil
}
