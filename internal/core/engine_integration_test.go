package core_test

import (
	"testing"
	"time"

	"BetLedger/internal/core"
	"BetLedger/internal/event"
	"BetLedger/internal/ledger"
	"BetLedger/internal/observability"

	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

// --- Test helpers ---

// newTestEngine creates an Engine with buffered channels and no DB checker.
func newTestEngine() (*core.Engine, chan core.CoreOutput, chan core.CoreOutput) {
	persistChan := make(chan core.CoreOutput, 1024)
	notifyChan := make(chan core.CoreOutput, 1024)
	e := core.NewEngine(0, persistChan, notifyChan, nil, 4096, nil)
	return e, persistChan, notifyChan
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// dayTS returns a timestamp a few hours into UTC day n.
func dayTS(n int64) time.Time {
	return time.Unix(n*86400+7200, 0).UTC()
}

func dayKey(trader uuid.UUID, n int64) ledger.DailyKey {
	return ledger.DailyKey{Trader: trader, Day: n * 86400}
}

func betPlaced(trader uuid.UUID, market string, outcome int32, stake, fee int64, seq int64, ts time.Time) *event.BetPlaced {
	return &event.BetPlaced{
		BetID:     uuid.New(),
		TraderID:  trader,
		Market:    market,
		Outcome:   outcome,
		Stake:     dec(stake),
		Fee:       dec(fee),
		Sequence:  seq,
		Timestamp: ts,
	}
}

func marketResolved(market string, outcome int32, seq int64, ts time.Time) *event.MarketResolved {
	return &event.MarketResolved{
		ResolutionID: uuid.New(),
		Market:       market,
		Outcome:      outcome,
		Sequence:     seq,
		Timestamp:    ts,
	}
}

func payoutRedeemed(trader uuid.UUID, market string, payout int64, seq int64, ts time.Time) *event.PayoutRedeemed {
	return &event.PayoutRedeemed{
		RedemptionID: uuid.New(),
		TraderID:     trader,
		Market:       market,
		Payout:       dec(payout),
		Sequence:     seq,
		Timestamp:    ts,
	}
}

func mustProcess(t *testing.T, e *core.Engine, evt event.Event) {
	t.Helper()
	if err := e.ProcessEvent(evt); err != nil {
		t.Fatalf("process %s: %v", evt.EventType(), err)
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: got %s, want %d", name, got, want)
	}
}

// ============================================================================
// Bet capture
// ============================================================================

func TestBetPlaced_RecordsPlacedTotals(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 1000, 100, 0, dayTS(1)))

	_, _, accounts, participations, daily, global := e.State()

	a := accounts.Get(trader)
	if a == nil {
		t.Fatal("account not created")
	}
	assertDec(t, "total staked", a.TotalStaked, 1000)
	assertDec(t, "total fees", a.TotalFees, 100)
	assertDec(t, "settled stake", a.TotalStakedSettled, 0)
	if a.BetCount != 1 {
		t.Errorf("bet count: got %d, want 1", a.BetCount)
	}

	p := participations.Get(ledger.ParticipationKey{Trader: trader, Market: "m1"})
	if p == nil {
		t.Fatal("participation not created")
	}
	assertDec(t, "participation staked", p.Staked, 1000)
	if len(p.BetIDs) != 1 {
		t.Errorf("participation bet ids: got %d, want 1", len(p.BetIDs))
	}

	d := daily.Get(dayKey(trader, 1))
	if d == nil {
		t.Fatal("daily record not created")
	}
	assertDec(t, "day-1 placed stake", d.PlacedStake, 1000)
	assertDec(t, "day-1 placed fees", d.PlacedFees, 100)
	assertDec(t, "day-1 realized profit", d.RealizedProfit, 0)

	g := global.Stats()
	assertDec(t, "global staked", g.TotalStaked, 1000)
	if g.BetCount != 1 || g.TraderCount != 1 || g.MarketCount != 1 {
		t.Errorf("global counts: bets=%d traders=%d markets=%d", g.BetCount, g.TraderCount, g.MarketCount)
	}
}

func TestBetPlaced_OnResolvedMarket_Ignored(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 100, 0, 0, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(2)))
	mustProcess(t, e, betPlaced(trader, "m1", 0, 999, 0, 2, dayTS(3)))

	_, _, accounts, _, _, _ := e.State()
	assertDec(t, "staked after late bet", accounts.Get(trader).TotalStaked, 100)
}

// ============================================================================
// Settlement: losses realized when the market resolves
// ============================================================================

func TestMarketResolved_LossRealizedAtSettlement(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	bet := betPlaced(trader, "m1", 0, 1000, 100, 0, dayTS(1))
	mustProcess(t, e, bet)
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))

	bets, markets, accounts, participations, daily, global := e.State()

	if !markets.Get("m1").Resolved {
		t.Error("market not marked resolved")
	}
	if got := bets.Get(bet.BetID).State; got != ledger.BetStateSettledLoss {
		t.Errorf("bet state: got %v, want settled_loss", got)
	}

	a := accounts.Get(trader)
	assertDec(t, "settled stake", a.TotalStakedSettled, 1000)
	assertDec(t, "settled fees", a.TotalFeesSettled, 100)

	p := participations.Get(ledger.ParticipationKey{Trader: trader, Market: "m1"})
	assertDec(t, "participation settled stake", p.StakedSettled, 1000)

	d := daily.Get(dayKey(trader, 3))
	if d == nil {
		t.Fatal("settlement-day record not created")
	}
	assertDec(t, "day-3 realized profit", d.RealizedProfit, -1100)
	if _, ok := d.Markets["m1"]; !ok {
		t.Error("market missing from day-3 participant set")
	}

	assertDec(t, "global settled stake", global.Stats().TotalStakedSettled, 1000)
}

func TestMarketResolved_WinnersStayPending(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	bet := betPlaced(trader, "m1", 1, 1000, 100, 0, dayTS(1))
	mustProcess(t, e, bet)
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))

	bets, _, accounts, _, daily, _ := e.State()

	if got := bets.Get(bet.BetID).State; got != ledger.BetStatePlaced {
		t.Errorf("winning bet state: got %v, want placed", got)
	}
	assertDec(t, "settled stake", accounts.Get(trader).TotalStakedSettled, 0)
	if daily.Get(dayKey(trader, 3)) != nil {
		t.Error("no settlement-day record should exist for a pure winner")
	}
}

func TestMarketResolved_DuplicateIgnored(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 1000, 100, 0, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))

	_, _, accounts, _, daily, global := e.State()
	settledBefore := accounts.Get(trader).TotalStakedSettled
	realizedBefore := daily.Get(dayKey(trader, 3)).RealizedProfit
	globalBefore := global.Stats().TotalStakedSettled

	// A different resolution event for the same market: the loss path
	// must not run a second time.
	mustProcess(t, e, marketResolved("m1", 0, 2, dayTS(4)))

	a := accounts.Get(trader)
	if !a.TotalStakedSettled.Equal(settledBefore) {
		t.Errorf("settled stake changed on duplicate: %s -> %s", settledBefore, a.TotalStakedSettled)
	}
	if !daily.Get(dayKey(trader, 3)).RealizedProfit.Equal(realizedBefore) {
		t.Error("realized profit changed on duplicate resolution")
	}
	if daily.Get(dayKey(trader, 4)) != nil {
		t.Error("duplicate resolution created a new daily record")
	}
	if !global.Stats().TotalStakedSettled.Equal(globalBefore) {
		t.Error("global settled changed on duplicate resolution")
	}
}

func TestMarketResolved_UnknownMarket_Ignored(t *testing.T) {
	e, _, _ := newTestEngine()

	if err := e.ProcessEvent(marketResolved("never-seen", 1, 0, dayTS(3))); err != nil {
		t.Fatalf("unknown market resolution should be consumed silently: %v", err)
	}

	_, markets, _, _, _, _ := e.State()
	if markets.Get("never-seen") != nil {
		t.Error("resolution must not create markets")
	}
}

// ============================================================================
// Redemption: wins realized when the trader claims
// ============================================================================

func TestRedeem_WinningBet(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	bet := betPlaced(trader, "m1", 1, 1000, 100, 0, dayTS(1))
	mustProcess(t, e, bet)
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))
	mustProcess(t, e, payoutRedeemed(trader, "m1", 2500, 2, dayTS(7)))

	bets, _, accounts, participations, daily, global := e.State()

	if got := bets.Get(bet.BetID).State; got != ledger.BetStateSettledWin {
		t.Errorf("bet state: got %v, want settled_win", got)
	}

	a := accounts.Get(trader)
	assertDec(t, "settled stake", a.TotalStakedSettled, 1000)
	assertDec(t, "settled fees", a.TotalFeesSettled, 100)
	assertDec(t, "payout", a.TotalPayout, 2500)

	p := participations.Get(ledger.ParticipationKey{Trader: trader, Market: "m1"})
	assertDec(t, "participation payout", p.Payout, 2500)

	d := daily.Get(dayKey(trader, 7))
	if d == nil {
		t.Fatal("redemption-day record not created")
	}
	assertDec(t, "day-7 realized profit", d.RealizedProfit, 1400)

	assertDec(t, "global payout", global.Stats().TotalPayout, 2500)
}

func TestRedeem_InvalidMarket_RefundPath(t *testing.T) {
	// INVALID resolution realizes nothing; all stake stays pending until
	// the trader redeems the refund.
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 1000, 0, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(trader, "m1", 1, 500, 0, 1, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", ledger.OutcomeInvalid, 2, dayTS(3)))

	_, _, accounts, _, daily, _ := e.State()

	assertDec(t, "settled stake after INVALID", accounts.Get(trader).TotalStakedSettled, 0)
	if daily.Get(dayKey(trader, 3)) != nil {
		t.Error("INVALID resolution must not create a settlement-day record")
	}

	// 50% refund of the 1500 at risk
	mustProcess(t, e, payoutRedeemed(trader, "m1", 750, 3, dayTS(5)))

	a := accounts.Get(trader)
	assertDec(t, "settled stake after refund", a.TotalStakedSettled, 1500)
	assertDec(t, "day-5 realized profit", daily.Get(dayKey(trader, 5)).RealizedProfit, -750)
}

func TestRedeem_SplitOutcomes(t *testing.T) {
	// One trader, one market, one winner and one loser. The loss is
	// realized at settlement; redemption profit is measured against the
	// winner's stake only.
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 500, 0, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(trader, "m1", 1, 500, 0, 1, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", 0, 2, dayTS(3)))

	_, _, _, _, daily, _ := e.State()
	assertDec(t, "settlement-day realized", daily.Get(dayKey(trader, 3)).RealizedProfit, -500)

	mustProcess(t, e, payoutRedeemed(trader, "m1", 1200, 3, dayTS(7)))
	assertDec(t, "redemption-day realized", daily.Get(dayKey(trader, 7)).RealizedProfit, 700)
}

func TestRedeem_Incremental(t *testing.T) {
	// A second claim finds nothing unsettled; only the new payout books.
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 1, 1000, 0, 0, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))
	mustProcess(t, e, payoutRedeemed(trader, "m1", 1500, 2, dayTS(4)))
	mustProcess(t, e, payoutRedeemed(trader, "m1", 300, 3, dayTS(6)))

	_, _, accounts, _, daily, _ := e.State()

	a := accounts.Get(trader)
	assertDec(t, "settled stake", a.TotalStakedSettled, 1000)
	assertDec(t, "total payout", a.TotalPayout, 1800)
	assertDec(t, "day-4 realized", daily.Get(dayKey(trader, 4)).RealizedProfit, 500)
	assertDec(t, "day-6 realized", daily.Get(dayKey(trader, 6)).RealizedProfit, 300)
}

func TestRedeem_UnknownTrader_Ignored(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 1, 1000, 0, 0, dayTS(1)))
	mustProcess(t, e, marketResolved("m1", 1, 1, dayTS(3)))

	stranger := uuid.New()
	if err := e.ProcessEvent(payoutRedeemed(stranger, "m1", 500, 2, dayTS(4))); err != nil {
		t.Fatalf("unknown trader redemption should be consumed silently: %v", err)
	}

	_, _, accounts, _, _, global := e.State()
	if accounts.Get(stranger) != nil {
		t.Error("redemption must not create accounts")
	}
	assertDec(t, "global payout", global.Stats().TotalPayout, 0)
}

func TestRedeem_UnresolvedMarket_Ignored(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 1, 1000, 0, 0, dayTS(1)))
	mustProcess(t, e, payoutRedeemed(trader, "m1", 2000, 1, dayTS(2)))

	_, _, accounts, _, _, _ := e.State()
	assertDec(t, "payout before resolution", accounts.Get(trader).TotalPayout, 0)
}

// ============================================================================
// Conservation across traders
// ============================================================================

func TestConservation_MultiTraderMarket(t *testing.T) {
	// Once every bet has passed through settlement or redemption, settled
	// stake+fees across all traders equals the total placed.
	e, _, _ := newTestEngine()
	winner, loser1, loser2 := uuid.New(), uuid.New(), uuid.New()

	mustProcess(t, e, betPlaced(winner, "m1", 1, 1000, 50, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(loser1, "m1", 0, 700, 30, 1, dayTS(1)))
	mustProcess(t, e, betPlaced(loser2, "m1", 0, 300, 20, 2, dayTS(2)))
	mustProcess(t, e, marketResolved("m1", 1, 3, dayTS(3)))
	mustProcess(t, e, payoutRedeemed(winner, "m1", 2100, 4, dayTS(4)))

	_, _, _, participations, _, global := e.State()

	totalSettled := decimal.Zero
	for _, trader := range []uuid.UUID{winner, loser1, loser2} {
		p := participations.Get(ledger.ParticipationKey{Trader: trader, Market: "m1"})
		totalSettled = totalSettled.Add(p.StakedSettled).Add(p.FeesSettled)
	}
	assertDec(t, "settled stake+fees across traders", totalSettled, 2100)

	g := global.Stats()
	if !g.TotalStakedSettled.Add(g.TotalFeesSettled).Equal(dec(2100)) {
		t.Errorf("global settled: %s + %s, want 2100", g.TotalStakedSettled, g.TotalFeesSettled)
	}
}

// ============================================================================
// Idempotency and ordering
// ============================================================================

func TestIdempotency_DuplicateEvent_Ignored(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	evt := betPlaced(trader, "m1", 0, 1000, 100, 0, dayTS(1))
	mustProcess(t, e, evt)
	// Redelivery: same idempotency key, stale source sequence
	mustProcess(t, e, evt)

	_, _, accounts, _, _, global := e.State()
	assertDec(t, "staked after redelivery", accounts.Get(trader).TotalStaked, 1000)
	if global.Stats().BetCount != 1 {
		t.Errorf("bet count: got %d, want 1", global.Stats().BetCount)
	}
}

func TestSequenceValidation_GapRejected(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 100, 0, 0, dayTS(1)))

	// Sequence 1 skipped
	err := e.ProcessEvent(betPlaced(trader, "m1", 0, 100, 0, 2, dayTS(1)))
	if err == nil {
		t.Fatal("sequence gap should be rejected")
	}

	_, _, accounts, _, _, _ := e.State()
	assertDec(t, "staked after gap", accounts.Get(trader).TotalStaked, 100)
}

func TestSequenceValidation_RegressionRejected(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	mustProcess(t, e, betPlaced(trader, "m1", 0, 100, 0, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(trader, "m1", 0, 100, 0, 1, dayTS(1)))

	// New event (fresh idempotency key) carrying an old sequence
	if err := e.ProcessEvent(betPlaced(trader, "m1", 0, 100, 0, 0, dayTS(1))); err == nil {
		t.Fatal("out-of-order fresh event should be rejected")
	}
}

// ============================================================================
// State hash chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	trader := uuid.New()
	betID, resolutionID, redemptionID := uuid.New(), uuid.New(), uuid.New()

	run := func() [][32]byte {
		e, persistChan, _ := newTestEngine()

		bet := &event.BetPlaced{
			BetID: betID, TraderID: trader, Market: "m1", Outcome: 1,
			Stake: dec(1000), Fee: dec(100), Sequence: 0, Timestamp: dayTS(1),
		}
		res := &event.MarketResolved{
			ResolutionID: resolutionID, Market: "m1", Outcome: 1,
			Sequence: 1, Timestamp: dayTS(3),
		}
		red := &event.PayoutRedeemed{
			RedemptionID: redemptionID, TraderID: trader, Market: "m1",
			Payout: dec(2500), Sequence: 2, Timestamp: dayTS(7),
		}
		mustProcess(t, e, bet)
		mustProcess(t, e, res)
		mustProcess(t, e, red)

		var hashes [][32]byte
		for i := 0; i < 3; i++ {
			out := <-persistChan
			hashes = append(hashes, out.Envelope.StateHash)
		}
		return hashes
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("hash %d differs across replays: %x vs %x", i, first[i], second[i])
		}
	}
}

// ============================================================================
// Envelope and channels
// ============================================================================

func TestEnvelope_HasCorrectFields(t *testing.T) {
	e, persistChan, _ := newTestEngine()
	trader := uuid.New()

	evt := betPlaced(trader, "m1", 0, 1000, 100, 0, dayTS(1))
	mustProcess(t, e, evt)

	out := <-persistChan
	env := out.Envelope
	if env.Sequence != 0 {
		t.Errorf("sequence: got %d, want 0", env.Sequence)
	}
	if env.EventType != event.EventTypeBetPlaced {
		t.Errorf("event type: got %v", env.EventType)
	}
	if env.IdempotencyKey != evt.BetID.String() {
		t.Errorf("idempotency key: got %s", env.IdempotencyKey)
	}
	if env.MarketID == nil || *env.MarketID != "m1" {
		t.Errorf("market id: got %v", env.MarketID)
	}
	if !env.Timestamp.Equal(dayTS(1)) {
		t.Errorf("timestamp: got %s, want %s", env.Timestamp, dayTS(1))
	}
	if len(env.Payload) == 0 {
		t.Error("payload empty")
	}
	if out.Changes.Empty() {
		t.Error("change set should carry the new bet and aggregates")
	}
}

func TestNotifyChannel_DropsOnFull(t *testing.T) {
	persistChan := make(chan core.CoreOutput, 16)
	notifyChan := make(chan core.CoreOutput, 1)
	e := core.NewEngine(0, persistChan, notifyChan, nil, 4096, nil)
	trader := uuid.New()

	// Second event must not block even though nobody drains notifyChan
	mustProcess(t, e, betPlaced(trader, "m1", 0, 100, 0, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(trader, "m1", 1, 100, 0, 1, dayTS(1)))

	if len(notifyChan) != 1 {
		t.Errorf("notify channel: got %d queued, want 1", len(notifyChan))
	}
	if len(persistChan) != 2 {
		t.Errorf("persist channel: got %d queued, want 2", len(persistChan))
	}
}

// ============================================================================
// Full lifecycle
// ============================================================================

func TestFullLifecycle_TwoMarkets(t *testing.T) {
	e, _, _ := newTestEngine()
	trader := uuid.New()

	// Market A: loss. Market B: win, redeemed later.
	mustProcess(t, e, betPlaced(trader, "a", 0, 1000, 100, 0, dayTS(1)))
	mustProcess(t, e, betPlaced(trader, "b", 1, 400, 40, 1, dayTS(1)))
	mustProcess(t, e, marketResolved("a", 1, 2, dayTS(3)))
	mustProcess(t, e, marketResolved("b", 1, 3, dayTS(3)))
	mustProcess(t, e, payoutRedeemed(trader, "b", 900, 4, dayTS(5)))

	_, _, accounts, _, daily, global := e.State()

	a := accounts.Get(trader)
	assertDec(t, "total staked", a.TotalStaked, 1400)
	assertDec(t, "settled stake", a.TotalStakedSettled, 1400)
	assertDec(t, "settled fees", a.TotalFeesSettled, 140)
	assertDec(t, "payout", a.TotalPayout, 900)

	// Day 3 carries market A's loss; day 5 carries market B's profit.
	assertDec(t, "day-3 realized", daily.Get(dayKey(trader, 3)).RealizedProfit, -1100)
	assertDec(t, "day-5 realized", daily.Get(dayKey(trader, 5)).RealizedProfit, 460)

	g := global.Stats()
	if g.MarketCount != 2 || g.TraderCount != 1 || g.BetCount != 2 {
		t.Errorf("global counts: markets=%d traders=%d bets=%d", g.MarketCount, g.TraderCount, g.BetCount)
	}
	if e.Sequence() != 5 {
		t.Errorf("engine sequence: got %d, want 5", e.Sequence())
	}
}

// =========================================================================
// Metrics-enabled commit path
// =========================================================================

// The engine records per-aggregate cache counters when metrics are wired
// in; every other test runs with nil metrics, so this one covers the
// instrumented path end to end.
func TestMetrics_CacheCountersOnCommit(t *testing.T) {
	persistChan := make(chan core.CoreOutput, 16)
	notifyChan := make(chan core.CoreOutput, 16)
	metrics := observability.NewMetrics()
	e := core.NewEngine(0, persistChan, notifyChan, nil, 4096, metrics)

	trader := uuid.New()
	mustProcess(t, e, betPlaced(trader, "m", 1, 500, 50, 0, dayTS(1)))

	// BetPlaced loads every aggregate kind exactly once.
	for _, aggregate := range []string{"bet", "market", "account", "participation", "daily"} {
		got := promtestutil.ToFloat64(metrics.CacheLoads.WithLabelValues(aggregate))
		if got < 1 {
			t.Errorf("cache loads for %s: got %v, want >= 1", aggregate, got)
		}
	}
	if got := promtestutil.ToFloat64(metrics.BetsRecorded); got != 1 {
		t.Errorf("bets recorded: got %v, want 1", got)
	}
	if got := promtestutil.ToFloat64(metrics.CoreEventsApplied.WithLabelValues("BetPlaced")); got != 1 {
		t.Errorf("events applied: got %v, want 1", got)
	}
}
