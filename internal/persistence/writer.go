package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// LedgerWriter writes the event log and aggregate upserts to Postgres
// using multi-row statements. Events and the aggregates they changed go
// into one transaction, so the tables never disagree with the log.
type LedgerWriter struct {
	db *sql.DB
}

// EventRow represents a row in betledger.events
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	MarketID       *string
	Payload        []byte // JSON-encoded event payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// BetRow represents a row in betledger.bets
type BetRow struct {
	BetID    string
	TraderID string
	MarketID string
	Outcome  int32
	Stake    string // decimal as string, column is NUMERIC
	Fee      string
	PlacedAt time.Time
	State    int32
}

// MarketRow represents a row in betledger.markets
type MarketRow struct {
	MarketID   string
	Resolved   bool
	Outcome    int32
	ResolvedAt time.Time
}

// AccountRow represents a row in betledger.trader_accounts
type AccountRow struct {
	TraderID           string
	TotalStaked        string
	TotalFees          string
	TotalStakedSettled string
	TotalFeesSettled   string
	TotalPayout        string
	BetCount           int64
	FirstActiveAt      time.Time
	LastActiveAt       time.Time
}

// ParticipationRow represents a row in betledger.market_participations
type ParticipationRow struct {
	TraderID      string
	MarketID      string
	Staked        string
	Fees          string
	StakedSettled string
	FeesSettled   string
	Payout        string
	BetCount      int64
	BetIDs        []string
}

// DailyRow represents a row in betledger.daily_profit
type DailyRow struct {
	TraderID       string
	Day            int64
	PlacedStake    string
	PlacedFees     string
	RealizedProfit string
	Markets        []string
}

// GlobalRow represents the singleton row in betledger.global_stats
type GlobalRow struct {
	TotalStaked        string
	TotalFees          string
	TotalStakedSettled string
	TotalFeesSettled   string
	TotalPayout        string
	BetCount           int64
	TraderCount        int64
	MarketCount        int64
}

func NewLedgerWriter(db *sql.DB) *LedgerWriter {
	return &LedgerWriter{db: db}
}

// WriteEventBatch appends events to betledger.events. Sequence conflicts
// are redeliveries and skipped.
func (w *LedgerWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.events
		(sequence, event_type, idempotency_key, market_id, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.MarketID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertBets writes bet rows, replacing state on conflict
func (w *LedgerWriter) UpsertBets(ctx context.Context, tx *sql.Tx, bets []BetRow) error {
	if len(bets) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.bets
		(bet_id, trader_id, market_id, outcome, stake, fee, placed_at, state)
		VALUES `

	values := make([]string, 0, len(bets))
	args := make([]interface{}, 0, len(bets)*8)

	for i, b := range bets {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, b.BetID, b.TraderID, b.MarketID, b.Outcome, b.Stake, b.Fee, b.PlacedAt, b.State)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (bet_id) DO UPDATE SET state = EXCLUDED.state`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertMarkets writes market rows, replacing resolution fields on conflict
func (w *LedgerWriter) UpsertMarkets(ctx context.Context, tx *sql.Tx, markets []MarketRow) error {
	if len(markets) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.markets
		(market_id, resolved, outcome, resolved_at)
		VALUES `

	values := make([]string, 0, len(markets))
	args := make([]interface{}, 0, len(markets)*4)

	for i, m := range markets {
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, m.MarketID, m.Resolved, m.Outcome, m.ResolvedAt)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (market_id) DO UPDATE SET
		resolved = EXCLUDED.resolved,
		outcome = EXCLUDED.outcome,
		resolved_at = EXCLUDED.resolved_at`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertAccounts writes trader account rows
func (w *LedgerWriter) UpsertAccounts(ctx context.Context, tx *sql.Tx, accounts []AccountRow) error {
	if len(accounts) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.trader_accounts
		(trader_id, total_staked, total_fees, total_staked_settled, total_fees_settled, total_payout, bet_count, first_active_at, last_active_at)
		VALUES `

	values := make([]string, 0, len(accounts))
	args := make([]interface{}, 0, len(accounts)*9)

	for i, a := range accounts {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			a.TraderID, a.TotalStaked, a.TotalFees, a.TotalStakedSettled,
			a.TotalFeesSettled, a.TotalPayout, a.BetCount, a.FirstActiveAt, a.LastActiveAt,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (trader_id) DO UPDATE SET
		total_staked = EXCLUDED.total_staked,
		total_fees = EXCLUDED.total_fees,
		total_staked_settled = EXCLUDED.total_staked_settled,
		total_fees_settled = EXCLUDED.total_fees_settled,
		total_payout = EXCLUDED.total_payout,
		bet_count = EXCLUDED.bet_count,
		last_active_at = EXCLUDED.last_active_at`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertParticipations writes per-(trader, market) rows
func (w *LedgerWriter) UpsertParticipations(ctx context.Context, tx *sql.Tx, rows []ParticipationRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.market_participations
		(trader_id, market_id, staked, fees, staked_settled, fees_settled, payout, bet_count, bet_ids)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)

	for i, p := range rows {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			p.TraderID, p.MarketID, p.Staked, p.Fees, p.StakedSettled,
			p.FeesSettled, p.Payout, p.BetCount, pq.Array(p.BetIDs),
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (trader_id, market_id) DO UPDATE SET
		staked = EXCLUDED.staked,
		fees = EXCLUDED.fees,
		staked_settled = EXCLUDED.staked_settled,
		fees_settled = EXCLUDED.fees_settled,
		payout = EXCLUDED.payout,
		bet_count = EXCLUDED.bet_count,
		bet_ids = EXCLUDED.bet_ids`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertDaily writes per-(trader, day) rows
func (w *LedgerWriter) UpsertDaily(ctx context.Context, tx *sql.Tx, rows []DailyRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO betledger.daily_profit
		(trader_id, day, placed_stake, placed_fees, realized_profit, markets)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*6)

	for i, d := range rows {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, d.TraderID, d.Day, d.PlacedStake, d.PlacedFees, d.RealizedProfit, pq.Array(d.Markets))
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (trader_id, day) DO UPDATE SET
		placed_stake = EXCLUDED.placed_stake,
		placed_fees = EXCLUDED.placed_fees,
		realized_profit = EXCLUDED.realized_profit,
		markets = EXCLUDED.markets`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertGlobal writes the stats singleton
func (w *LedgerWriter) UpsertGlobal(ctx context.Context, tx *sql.Tx, g *GlobalRow) error {
	if g == nil {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO betledger.global_stats
			(id, total_staked, total_fees, total_staked_settled, total_fees_settled, total_payout, bet_count, trader_count, market_count)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			total_staked = EXCLUDED.total_staked,
			total_fees = EXCLUDED.total_fees,
			total_staked_settled = EXCLUDED.total_staked_settled,
			total_fees_settled = EXCLUDED.total_fees_settled,
			total_payout = EXCLUDED.total_payout,
			bet_count = EXCLUDED.bet_count,
			trader_count = EXCLUDED.trader_count,
			market_count = EXCLUDED.market_count
	`, g.TotalStaked, g.TotalFees, g.TotalStakedSettled, g.TotalFeesSettled,
		g.TotalPayout, g.BetCount, g.TraderCount, g.MarketCount)

	return err
}

// MarshalEventPayload serializes an event payload to JSON for storage.
func MarshalEventPayload(payload interface{}) ([]byte, error) {
	return json.Marshal(payload)
}
