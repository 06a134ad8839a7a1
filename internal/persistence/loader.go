package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"BetLedger/internal/ledger"
	"BetLedger/internal/state"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StateLoader rebuilds the in-memory ledger state from Postgres at boot.
// Aggregates are written in the same transaction as the event log, so the
// tables are always consistent with the log. Events not yet pulled off
// NATS are redelivered; events acked but still in the in-process channels
// at crash time are lost until the source replays them.
type StateLoader struct {
	db *sql.DB
}

// BootstrapState carries everything the engine needs to resume
type BootstrapState struct {
	Sequence        int64 // next sequence the engine should assign
	PrevHash        [32]byte
	ExpectedNext    map[string]int64 // partition -> next expected source sequence
	IdempotencyKeys []string         // recent composite keys for LRU warming
}

func NewStateLoader(db *sql.DB) *StateLoader {
	return &StateLoader{db: db}
}

// LoadBootstrap reads the chain tip and sequencing state from the event log
func (sl *StateLoader) LoadBootstrap(ctx context.Context, warmKeys int) (*BootstrapState, error) {
	bs := &BootstrapState{
		ExpectedNext: make(map[string]int64),
	}

	var sequence, sourceSequence sql.NullInt64
	var stateHash []byte
	err := sl.db.QueryRowContext(ctx, `
		SELECT sequence, source_sequence, state_hash
		FROM betledger.events
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&sequence, &sourceSequence, &stateHash)
	if err == sql.ErrNoRows {
		return bs, nil // cold start
	}
	if err != nil {
		return nil, fmt.Errorf("load chain tip: %w", err)
	}

	bs.Sequence = sequence.Int64 + 1
	bs.ExpectedNext["stream"] = sourceSequence.Int64 + 1
	copy(bs.PrevHash[:], stateHash)

	checker := NewPostgresIdempotencyChecker(sl.db)
	keys, err := checker.RecentKeys(ctx, warmKeys)
	if err != nil {
		return nil, fmt.Errorf("load recent keys: %w", err)
	}
	bs.IdempotencyKeys = keys

	return bs, nil
}

// LoadBets fills the bet book
func (sl *StateLoader) LoadBets(ctx context.Context, book *state.BetBook) (int, error) {
	rows, err := sl.db.QueryContext(ctx, `
		SELECT bet_id, trader_id, market_id, outcome, stake, fee, placed_at, state
		FROM betledger.bets
		ORDER BY placed_at, bet_id
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var betID, traderID, marketID, stake, fee string
		var outcome, betState int32
		var placedAt time.Time
		if err := rows.Scan(&betID, &traderID, &marketID, &outcome, &stake, &fee, &placedAt, &betState); err != nil {
			return n, err
		}

		bet := &ledger.Bet{
			Market:   marketID,
			Outcome:  outcome,
			PlacedAt: placedAt,
			State:    ledger.BetState(betState),
		}
		if bet.ID, err = uuid.Parse(betID); err != nil {
			return n, fmt.Errorf("bet %s: %w", betID, err)
		}
		if bet.Trader, err = uuid.Parse(traderID); err != nil {
			return n, fmt.Errorf("bet %s trader: %w", betID, err)
		}
		if bet.Stake, err = decimal.NewFromString(stake); err != nil {
			return n, fmt.Errorf("bet %s stake: %w", betID, err)
		}
		if bet.Fee, err = decimal.NewFromString(fee); err != nil {
			return n, fmt.Errorf("bet %s fee: %w", betID, err)
		}

		book.Put(bet)
		n++
	}
	return n, rows.Err()
}

// LoadMarkets fills the market registry
func (sl *StateLoader) LoadMarkets(ctx context.Context, registry *state.MarketRegistry) (int, error) {
	rows, err := sl.db.QueryContext(ctx, `
		SELECT market_id, resolved, outcome, resolved_at
		FROM betledger.markets
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		m := &ledger.Market{}
		if err := rows.Scan(&m.ID, &m.Resolved, &m.Outcome, &m.ResolvedAt); err != nil {
			return n, err
		}
		registry.Put(m)
		n++
	}
	return n, rows.Err()
}

// LoadAccounts fills the account manager
func (sl *StateLoader) LoadAccounts(ctx context.Context, accounts *state.AccountManager) (int, error) {
	rows, err := sl.db.QueryContext(ctx, `
		SELECT trader_id, total_staked, total_fees, total_staked_settled, total_fees_settled, total_payout, bet_count, first_active_at, last_active_at
		FROM betledger.trader_accounts
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var traderID string
		var staked, fees, stakedSettled, feesSettled, payout string
		a := &ledger.TraderAccount{}
		if err := rows.Scan(&traderID, &staked, &fees, &stakedSettled, &feesSettled, &payout, &a.BetCount, &a.FirstActiveAt, &a.LastActiveAt); err != nil {
			return n, err
		}
		if a.Trader, err = uuid.Parse(traderID); err != nil {
			return n, fmt.Errorf("account %s: %w", traderID, err)
		}
		if err = scanDecimals(map[*decimal.Decimal]string{
			&a.TotalStaked: staked, &a.TotalFees: fees,
			&a.TotalStakedSettled: stakedSettled, &a.TotalFeesSettled: feesSettled,
			&a.TotalPayout: payout,
		}); err != nil {
			return n, fmt.Errorf("account %s: %w", traderID, err)
		}
		accounts.Put(a)
		n++
	}
	return n, rows.Err()
}

// LoadParticipations fills the participation manager
func (sl *StateLoader) LoadParticipations(ctx context.Context, participations *state.ParticipationManager) (int, error) {
	rows, err := sl.db.QueryContext(ctx, `
		SELECT trader_id, market_id, staked, fees, staked_settled, fees_settled, payout, bet_count, bet_ids
		FROM betledger.market_participations
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var traderID string
		var staked, fees, stakedSettled, feesSettled, payout string
		var betIDs []string
		p := &ledger.MarketParticipation{}
		if err := rows.Scan(&traderID, &p.Market, &staked, &fees, &stakedSettled, &feesSettled, &payout, &p.BetCount, pq.Array(&betIDs)); err != nil {
			return n, err
		}
		if p.Trader, err = uuid.Parse(traderID); err != nil {
			return n, fmt.Errorf("participation %s: %w", traderID, err)
		}
		if err = scanDecimals(map[*decimal.Decimal]string{
			&p.Staked: staked, &p.Fees: fees,
			&p.StakedSettled: stakedSettled, &p.FeesSettled: feesSettled,
			&p.Payout: payout,
		}); err != nil {
			return n, fmt.Errorf("participation %s/%s: %w", traderID, p.Market, err)
		}
		p.BetIDs = make([]uuid.UUID, 0, len(betIDs))
		for _, id := range betIDs {
			u, err := uuid.Parse(id)
			if err != nil {
				return n, fmt.Errorf("participation %s/%s bet id: %w", traderID, p.Market, err)
			}
			p.BetIDs = append(p.BetIDs, u)
		}
		participations.Put(p)
		n++
	}
	return n, rows.Err()
}

// LoadDaily fills the daily manager
func (sl *StateLoader) LoadDaily(ctx context.Context, daily *state.DailyManager) (int, error) {
	rows, err := sl.db.QueryContext(ctx, `
		SELECT trader_id, day, placed_stake, placed_fees, realized_profit, markets
		FROM betledger.daily_profit
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var traderID string
		var placedStake, placedFees, realizedProfit string
		var markets []string
		d := &ledger.DailyProfitRecord{}
		if err := rows.Scan(&traderID, &d.Day, &placedStake, &placedFees, &realizedProfit, pq.Array(&markets)); err != nil {
			return n, err
		}
		if d.Trader, err = uuid.Parse(traderID); err != nil {
			return n, fmt.Errorf("daily %s: %w", traderID, err)
		}
		if err = scanDecimals(map[*decimal.Decimal]string{
			&d.PlacedStake: placedStake, &d.PlacedFees: placedFees,
			&d.RealizedProfit: realizedProfit,
		}); err != nil {
			return n, fmt.Errorf("daily %s/%d: %w", traderID, d.Day, err)
		}
		d.Markets = make(map[string]struct{}, len(markets))
		for _, m := range markets {
			d.Markets[m] = struct{}{}
		}
		daily.Put(d)
		n++
	}
	return n, rows.Err()
}

// LoadGlobal restores the stats singleton
func (sl *StateLoader) LoadGlobal(ctx context.Context, tracker *state.GlobalTracker) error {
	var staked, fees, stakedSettled, feesSettled, payout string
	g := ledger.NewGlobalStats()
	err := sl.db.QueryRowContext(ctx, `
		SELECT total_staked, total_fees, total_staked_settled, total_fees_settled, total_payout, bet_count, trader_count, market_count
		FROM betledger.global_stats
		WHERE id = 1
	`).Scan(&staked, &fees, &stakedSettled, &feesSettled, &payout, &g.BetCount, &g.TraderCount, &g.MarketCount)
	if err == sql.ErrNoRows {
		return nil // cold start, keep zeroed stats
	}
	if err != nil {
		return err
	}
	if err = scanDecimals(map[*decimal.Decimal]string{
		&g.TotalStaked: staked, &g.TotalFees: fees,
		&g.TotalStakedSettled: stakedSettled, &g.TotalFeesSettled: feesSettled,
		&g.TotalPayout: payout,
	}); err != nil {
		return err
	}
	tracker.Restore(g)
	return nil
}

func scanDecimals(fields map[*decimal.Decimal]string) error {
	for dst, src := range fields {
		d, err := decimal.NewFromString(src)
		if err != nil {
			return err
		}
		*dst = d
	}
	return nil
}
