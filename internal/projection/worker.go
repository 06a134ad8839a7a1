package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"BetLedger/internal/observability"
)

// AccountUpdate carries the account columns the leaderboard derives from.
// The orchestrator bridges between core.CoreOutput and this.
type AccountUpdate struct {
	TraderID           uuid.UUID
	TotalStakedSettled string
	TotalFeesSettled   string
	TotalPayout        string
	BetCount           int64
}

// LeaderboardOutput is one processed event's worth of account changes.
type LeaderboardOutput struct {
	Sequence int64
	Accounts []AccountUpdate
}

// LeaderboardWorker maintains betledger.leaderboard, a ranking of traders
// by realized net profit (payout minus settled stake and fees). It feeds
// off the non-blocking notify channel, so it may drop updates under load;
// the table can always be rebuilt from trader_accounts.
type LeaderboardWorker struct {
	db        *sql.DB
	inputChan <-chan LeaderboardOutput
	lastSeq   int64
}

func NewLeaderboardWorker(db *sql.DB, inputChan <-chan LeaderboardOutput) *LeaderboardWorker {
	return &LeaderboardWorker{
		db:        db,
		inputChan: inputChan,
	}
}

// Run starts the worker loop.
func (lw *LeaderboardWorker) Run(ctx context.Context) error {
	logger := observability.NewLogger("leaderboard")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-lw.inputChan:
			if !ok {
				return nil
			}

			if err := lw.processOutput(ctx, output); err != nil {
				logger.Warn().
					Int64("sequence", output.Sequence).
					Err(err).
					Msg("leaderboard update failed")
				// Continue. The leaderboard is eventually consistent
				// and can be rebuilt from trader_accounts.
			}

			lw.lastSeq = output.Sequence
		}
	}
}

func (lw *LeaderboardWorker) processOutput(ctx context.Context, output LeaderboardOutput) error {
	if len(output.Accounts) == 0 {
		return nil
	}

	tx, err := lw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range output.Accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO betledger.leaderboard
				(trader_id, net_profit, settled_stake, total_payout, bet_count, last_sequence)
			VALUES ($1, $2::numeric - $3::numeric - $4::numeric, $3, $2, $5, $6)
			ON CONFLICT (trader_id) DO UPDATE SET
				net_profit    = $2::numeric - $3::numeric - $4::numeric,
				settled_stake = $3,
				total_payout  = $2,
				bet_count     = $5,
				last_sequence = $6
		`, a.TraderID, a.TotalPayout, a.TotalStakedSettled, a.TotalFeesSettled,
			a.BetCount, output.Sequence); err != nil {
			return fmt.Errorf("leaderboard upsert: %w", err)
		}
	}

	return tx.Commit()
}

// RebuildLeaderboard repopulates the leaderboard from trader_accounts.
// Safe to run any time; the account table is the source of truth.
func RebuildLeaderboard(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE betledger.leaderboard`); err != nil {
		return fmt.Errorf("truncate leaderboard: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO betledger.leaderboard
			(trader_id, net_profit, settled_stake, total_payout, bet_count, last_sequence)
		SELECT
			trader_id,
			total_payout - total_staked_settled - total_fees_settled,
			total_staked_settled,
			total_payout,
			bet_count,
			(SELECT COALESCE(MAX(sequence), 0) FROM betledger.events)
		FROM betledger.trader_accounts
	`); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logger := observability.NewLogger("leaderboard")
	logger.Info().Msg("leaderboard rebuild complete")
	return nil
}
