package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"BetLedger/internal/state"
	"BetLedger/internal/testutil"
)

// These tests need a real Postgres; run docker-compose.test.yml and set
// INTEGRATION_TEST=1. They are skipped otherwise.

func setupWriterTest(t *testing.T) (*LedgerWriter, *StateLoader, func()) {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		cleanup()
		t.Fatalf("migrate up: %v", err)
	}

	return NewLedgerWriter(db), NewStateLoader(db), cleanup
}

// =========================================================================
// Event log + bet roundtrip
// =========================================================================

func TestWriteAndLoadBets(t *testing.T) {
	writer, loader, cleanup := setupWriterTest(t)
	defer cleanup()
	ctx := context.Background()

	betID := uuid.New()
	traderID := uuid.New()
	placedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	marketID := "MKT-ROUNDTRIP"

	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	err = writer.WriteEventBatch(ctx, tx, []EventRow{{
		Sequence:       0,
		EventType:      "bet_placed",
		IdempotencyKey: betID.String(),
		MarketID:       &marketID,
		Payload:        []byte(`{}`),
		StateHash:      make([]byte, 32),
		PrevHash:       make([]byte, 32),
		Timestamp:      placedAt,
		SourceSequence: 1,
	}})
	if err != nil {
		tx.Rollback()
		t.Fatalf("write events: %v", err)
	}
	err = writer.UpsertBets(ctx, tx, []BetRow{{
		BetID:    betID.String(),
		TraderID: traderID.String(),
		MarketID: marketID,
		Outcome:  1,
		Stake:    "1000.5",
		Fee:      "25",
		PlacedAt: placedAt,
		State:    0,
	}})
	if err != nil {
		tx.Rollback()
		t.Fatalf("upsert bets: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	book := state.NewBetBook()
	n, err := loader.LoadBets(ctx, book)
	if err != nil {
		t.Fatalf("load bets: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d bets, want 1", n)
	}

	bet := book.Get(betID)
	if bet == nil {
		t.Fatal("bet not found after load")
	}
	if bet.Trader != traderID {
		t.Errorf("trader = %s, want %s", bet.Trader, traderID)
	}
	if bet.Market != marketID {
		t.Errorf("market = %s, want %s", bet.Market, marketID)
	}
	if bet.Stake.String() != "1000.5" {
		t.Errorf("stake = %s, want 1000.5", bet.Stake)
	}
	if bet.Fee.String() != "25" {
		t.Errorf("fee = %s, want 25", bet.Fee)
	}
}

// =========================================================================
// Bootstrap: chain tip and idempotency warm keys
// =========================================================================

func TestLoadBootstrap_ResumesAfterChainTip(t *testing.T) {
	writer, loader, cleanup := setupWriterTest(t)
	defer cleanup()
	ctx := context.Background()

	key := uuid.New().String()

	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	hash := make([]byte, 32)
	hash[0] = 0xAB
	err = writer.WriteEventBatch(ctx, tx, []EventRow{{
		Sequence:       7,
		EventType:      "market_resolved",
		IdempotencyKey: key,
		Payload:        []byte(`{}`),
		StateHash:      hash,
		PrevHash:       make([]byte, 32),
		Timestamp:      time.Now().UTC(),
		SourceSequence: 42,
	}})
	if err != nil {
		tx.Rollback()
		t.Fatalf("write events: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	bs, err := loader.LoadBootstrap(ctx, 100)
	if err != nil {
		t.Fatalf("load bootstrap: %v", err)
	}
	if bs.Sequence != 8 {
		t.Errorf("next sequence = %d, want 8", bs.Sequence)
	}
	if bs.ExpectedNext["stream"] != 43 {
		t.Errorf("expected next source = %d, want 43", bs.ExpectedNext["stream"])
	}
	if bs.PrevHash[0] != 0xAB {
		t.Errorf("prev hash not restored from chain tip")
	}

	found := false
	for _, k := range bs.IdempotencyKeys {
		if k == "market_resolved:"+key {
			found = true
		}
	}
	if !found {
		t.Errorf("warm keys %v missing market_resolved:%s", bs.IdempotencyKeys, key)
	}
}

func TestLoadBootstrap_ColdStart(t *testing.T) {
	_, loader, cleanup := setupWriterTest(t)
	defer cleanup()

	bs, err := loader.LoadBootstrap(context.Background(), 100)
	if err != nil {
		t.Fatalf("load bootstrap: %v", err)
	}
	if bs.Sequence != 0 {
		t.Errorf("cold start sequence = %d, want 0", bs.Sequence)
	}
	if len(bs.IdempotencyKeys) != 0 {
		t.Errorf("cold start warm keys = %v, want none", bs.IdempotencyKeys)
	}
}

// =========================================================================
// Database-backed idempotency
// =========================================================================

func TestPostgresIdempotencyChecker(t *testing.T) {
	writer, _, cleanup := setupWriterTest(t)
	defer cleanup()
	ctx := context.Background()

	key := uuid.New().String()

	checker := NewPostgresIdempotencyChecker(writer.db)
	dup, err := checker.IsDuplicate("bet_placed", key)
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Fatal("unseen key reported as duplicate")
	}

	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	err = writer.WriteEventBatch(ctx, tx, []EventRow{{
		Sequence:       0,
		EventType:      "bet_placed",
		IdempotencyKey: key,
		Payload:        []byte(`{}`),
		StateHash:      make([]byte, 32),
		PrevHash:       make([]byte, 32),
		Timestamp:      time.Now().UTC(),
		SourceSequence: 1,
	}})
	if err != nil {
		tx.Rollback()
		t.Fatalf("write events: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	dup, err = checker.IsDuplicate("bet_placed", key)
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Error("persisted key not reported as duplicate")
	}
}
