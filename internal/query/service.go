package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// QueryService provides read-only access to the ledger tables. Aggregates
// are written in the same transaction as their event log rows, so a single
// watermark (the highest persisted sequence) bounds the staleness of every
// read.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetAccount returns the lifetime rollup for one trader.
func (qs *QueryService) GetAccount(
	ctx context.Context,
	traderID uuid.UUID,
) (*AccountResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &AccountResponse{TraderID: traderID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT total_staked, total_fees, total_staked_settled, total_fees_settled,
		       total_payout, bet_count, first_active_at, last_active_at
		FROM betledger.trader_accounts
		WHERE trader_id = $1
	`, traderID).Scan(
		&resp.TotalStaked, &resp.TotalFees, &resp.TotalStakedSettled,
		&resp.TotalFeesSettled, &resp.TotalPayout, &resp.BetCount,
		&resp.FirstActiveAt, &resp.LastActiveAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetParticipation returns the rollup for one (trader, market) pair.
func (qs *QueryService) GetParticipation(
	ctx context.Context,
	traderID uuid.UUID,
	marketID string,
) (*ParticipationResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &ParticipationResponse{
		TraderID:     traderID,
		MarketID:     marketID,
		AsOfSequence: asOfSeq,
	}
	var betIDs []sql.NullString
	err = qs.db.QueryRowContext(ctx, `
		SELECT staked, fees, staked_settled, fees_settled, payout, bet_count, bet_ids
		FROM betledger.market_participations
		WHERE trader_id = $1 AND market_id = $2
	`, traderID, marketID).Scan(
		&resp.Staked, &resp.Fees, &resp.StakedSettled, &resp.FeesSettled,
		&resp.Payout, &resp.BetCount, pq.Array(&betIDs),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, id := range betIDs {
		if id.Valid {
			resp.BetIDs = append(resp.BetIDs, id.String)
		}
	}
	return resp, nil
}

// GetDailyProfits returns a trader's day buckets in [fromDay, toDay],
// newest first. Bounds are UTC-midnight unix seconds.
func (qs *QueryService) GetDailyProfits(
	ctx context.Context,
	traderID uuid.UUID,
	fromDay, toDay int64,
	limit int,
) ([]DailyProfitResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT day, placed_stake, placed_fees, realized_profit, markets
		FROM betledger.daily_profit
		WHERE trader_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day DESC
		LIMIT $4
	`, traderID, fromDay, toDay, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DailyProfitResponse
	for rows.Next() {
		r := DailyProfitResponse{TraderID: traderID, AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&r.Day, &r.PlacedStake, &r.PlacedFees, &r.RealizedProfit,
			pq.Array(&r.Markets),
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetGlobalStats returns the venue-wide rollup.
func (qs *QueryService) GetGlobalStats(ctx context.Context) (*GlobalStatsResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &GlobalStatsResponse{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT total_staked, total_fees, total_staked_settled, total_fees_settled,
		       total_payout, bet_count, trader_count, market_count
		FROM betledger.global_stats
		WHERE id = 1
	`).Scan(
		&resp.TotalStaked, &resp.TotalFees, &resp.TotalStakedSettled,
		&resp.TotalFeesSettled, &resp.TotalPayout, &resp.BetCount,
		&resp.TraderCount, &resp.MarketCount,
	)
	if err == sql.ErrNoRows {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBet returns a single bet by ID.
func (qs *QueryService) GetBet(ctx context.Context, betID uuid.UUID) (*BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &BetResponse{BetID: betID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT trader_id, market_id, outcome, stake, fee, state, placed_at
		FROM betledger.bets
		WHERE bet_id = $1
	`, betID).Scan(
		&resp.TraderID, &resp.MarketID, &resp.Outcome,
		&resp.Stake, &resp.Fee, &resp.State, &resp.PlacedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetMarketBets returns bets on one market with cursor-based pagination.
// Pass the last BetID of the previous page as afterBet to continue.
func (qs *QueryService) GetMarketBets(
	ctx context.Context,
	marketID string,
	limit int,
	afterBet *uuid.UUID,
) ([]BetResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	query := `
		SELECT bet_id, trader_id, outcome, stake, fee, state, placed_at
		FROM betledger.bets
		WHERE market_id = $1
	`
	args := []interface{}{marketID}
	argIdx := 2

	if afterBet != nil {
		query += fmt.Sprintf(" AND bet_id > $%d", argIdx)
		args = append(args, *afterBet)
		argIdx++
	}

	query += " ORDER BY bet_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []BetResponse
	for rows.Next() {
		b := BetResponse{MarketID: marketID, AsOfSequence: asOfSeq}
		if err := rows.Scan(
			&b.BetID, &b.TraderID, &b.Outcome, &b.Stake, &b.Fee,
			&b.State, &b.PlacedAt,
		); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}

	return bets, rows.Err()
}

// GetLeaderboard returns the top traders by realized net profit. Served
// from the derived leaderboard table, which lags the ledger slightly.
func (qs *QueryService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT trader_id, net_profit, settled_stake, total_payout, bet_count, last_sequence
		FROM betledger.leaderboard
		ORDER BY net_profit DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(
			&e.TraderID, &e.NetProfit, &e.SettledStake, &e.TotalPayout,
			&e.BetCount, &e.AsOfSequence,
		); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and that trader accounts
// sum to the global rollup.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM betledger.events e1
		JOIN betledger.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Accounts must sum to global_stats, column by column. A non-zero
	// drift means a partial write slipped through.
	var drift sql.NullString
	err = qs.db.QueryRowContext(ctx, `
		SELECT (COALESCE(SUM(a.total_staked), 0) - g.total_staked)
		     + (COALESCE(SUM(a.total_fees), 0) - g.total_fees)
		     + (COALESCE(SUM(a.total_staked_settled), 0) - g.total_staked_settled)
		     + (COALESCE(SUM(a.total_fees_settled), 0) - g.total_fees_settled)
		     + (COALESCE(SUM(a.total_payout), 0) - g.total_payout)
		FROM betledger.global_stats g
		LEFT JOIN betledger.trader_accounts a ON TRUE
		WHERE g.id = 1
		GROUP BY g.total_staked, g.total_fees, g.total_staked_settled,
		         g.total_fees_settled, g.total_payout
	`).Scan(&drift)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if drift.Valid && drift.String != "0" && drift.String != "0.000000000000000000" {
		report.AccountDrift = drift.String
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && report.AccountDrift == ""
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM betledger.events
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
