package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"BetLedger/internal/event"
	"BetLedger/internal/ingestion"
	"BetLedger/internal/ledger"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseBetPlaced(t *testing.T) {
	payload := map[string]interface{}{
		"bet_id":       "550e8400-e29b-41d4-a716-446655440000",
		"trader_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market":       "will-btc-close-above-100k",
		"outcome":      int32(1),
		"stake":        "1000.50",
		"fee":          "10.005",
		"sequence":     int64(42),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "BetPlaced")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	bp, ok := evt.(*event.BetPlaced)
	if !ok {
		t.Fatalf("expected *event.BetPlaced, got %T", evt)
	}

	if bp.BetID.String() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("bet_id: got %s", bp.BetID)
	}
	if bp.Market != "will-btc-close-above-100k" {
		t.Errorf("market: got %s", bp.Market)
	}
	if bp.Outcome != 1 {
		t.Errorf("outcome: got %d, want 1", bp.Outcome)
	}
	if bp.Stake.String() != "1000.5" {
		t.Errorf("stake: got %s, want 1000.5", bp.Stake)
	}
	if bp.Fee.String() != "10.005" {
		t.Errorf("fee: got %s, want 10.005", bp.Fee)
	}
	if bp.Sequence != 42 {
		t.Errorf("sequence: got %d, want 42", bp.Sequence)
	}
	if bp.Timestamp.UnixMicro() != 1700000000000000 {
		t.Errorf("timestamp: got %d", bp.Timestamp.UnixMicro())
	}
	if bp.EventType() != event.EventTypeBetPlaced {
		t.Errorf("event type: got %v", bp.EventType())
	}
	if bp.IdempotencyKey() != bp.BetID.String() {
		t.Errorf("idempotency key: got %s", bp.IdempotencyKey())
	}
}

func TestParseBetPlaced_FloatStakeRejected(t *testing.T) {
	// Monetary amounts must arrive as decimal strings
	payload := map[string]interface{}{
		"bet_id":       "550e8400-e29b-41d4-a716-446655440000",
		"trader_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market":       "m",
		"outcome":      int32(0),
		"stake":        1000.5,
		"fee":          "0",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "BetPlaced"); err == nil {
		t.Error("float stake should be rejected")
	}
}

func TestParseBetPlaced_BadUUID(t *testing.T) {
	payload := map[string]interface{}{
		"bet_id":       "not-a-uuid",
		"trader_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market":       "m",
		"outcome":      int32(0),
		"stake":        "1",
		"fee":          "0",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	if _, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "BetPlaced"); err == nil {
		t.Error("malformed bet_id should be rejected")
	}
}

func TestParseMarketResolved(t *testing.T) {
	payload := map[string]interface{}{
		"resolution_id": "770e8400-e29b-41d4-a716-446655440002",
		"market":        "will-btc-close-above-100k",
		"outcome":       int32(0),
		"sequence":      int64(100),
		"timestamp_us":  int64(1700000500000000),
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "MarketResolved")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mr, ok := evt.(*event.MarketResolved)
	if !ok {
		t.Fatalf("expected *event.MarketResolved, got %T", evt)
	}
	if mr.Outcome != 0 {
		t.Errorf("outcome: got %d, want 0", mr.Outcome)
	}
	if mr.Sequence != 100 {
		t.Errorf("sequence: got %d, want 100", mr.Sequence)
	}
	if mr.EventType() != event.EventTypeMarketResolved {
		t.Errorf("event type: got %v", mr.EventType())
	}
}

func TestParseMarketResolved_InvalidSentinel(t *testing.T) {
	payload := map[string]interface{}{
		"resolution_id": "770e8400-e29b-41d4-a716-446655440002",
		"market":        "void-market",
		"outcome":       ledger.OutcomeInvalid,
		"sequence":      int64(5),
		"timestamp_us":  int64(1700000500000000),
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "MarketResolved")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if evt.(*event.MarketResolved).Outcome != ledger.OutcomeInvalid {
		t.Error("INVALID sentinel lost in parsing")
	}
}

func TestParsePayoutRedeemed(t *testing.T) {
	payload := map[string]interface{}{
		"redemption_id": "880e8400-e29b-41d4-a716-446655440003",
		"trader_id":     "660e8400-e29b-41d4-a716-446655440001",
		"market":        "will-btc-close-above-100k",
		"payout":        "2500",
		"sequence":      int64(200),
		"timestamp_us":  int64(1700001000000000),
	}

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), "PayoutRedeemed")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pr, ok := evt.(*event.PayoutRedeemed)
	if !ok {
		t.Fatalf("expected *event.PayoutRedeemed, got %T", evt)
	}
	if pr.Payout.String() != "2500" {
		t.Errorf("payout: got %s, want 2500", pr.Payout)
	}
	if pr.IdempotencyKey() != "880e8400-e29b-41d4-a716-446655440003" {
		t.Errorf("idempotency key: got %s", pr.IdempotencyKey())
	}
	if pr.MarketID() == nil || *pr.MarketID() != "will-btc-close-above-100k" {
		t.Errorf("market id: got %v", pr.MarketID())
	}
}

func TestParseUnknownEventType(t *testing.T) {
	raw := rawFromJSON(t, map[string]interface{}{})
	if _, err := ingestion.ParseRawEvent(raw, "OrderCancelled"); err == nil {
		t.Error("unknown event type should be rejected")
	}
}

func TestParseGarbagePayload(t *testing.T) {
	raw := ingestion.RawEvent{Subject: "test", Data: []byte("{not json")}
	if _, err := ingestion.ParseRawEvent(raw, "BetPlaced"); err == nil {
		t.Error("malformed JSON should be rejected")
	}
}
