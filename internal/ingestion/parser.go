package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"BetLedger/internal/event"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into
// a typed event.Event. The ingestion shell validates, parses, and converts
// raw events before handing them to the engine.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "BetPlaced":
		return parseBetPlaced(raw.Data)
	case "MarketResolved":
		return parseMarketResolved(raw.Data)
	case "PayoutRedeemed":
		return parsePayoutRedeemed(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Monetary
// amounts arrive as decimal strings; float wire formats are rejected.

type betPlacedJSON struct {
	BetID       string `json:"bet_id"`
	TraderID    string `json:"trader_id"`
	Market      string `json:"market"`
	Outcome     int32  `json:"outcome"`
	Stake       string `json:"stake"`
	Fee         string `json:"fee"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseBetPlaced(data []byte) (*event.BetPlaced, error) {
	var j betPlacedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BetPlaced: %w", err)
	}

	betID, err := uuid.Parse(j.BetID)
	if err != nil {
		return nil, fmt.Errorf("parse bet_id: %w", err)
	}
	traderID, err := uuid.Parse(j.TraderID)
	if err != nil {
		return nil, fmt.Errorf("parse trader_id: %w", err)
	}
	stake, err := decimal.NewFromString(j.Stake)
	if err != nil {
		return nil, fmt.Errorf("parse stake: %w", err)
	}
	fee, err := decimal.NewFromString(j.Fee)
	if err != nil {
		return nil, fmt.Errorf("parse fee: %w", err)
	}

	return &event.BetPlaced{
		BetID:     betID,
		TraderID:  traderID,
		Market:    j.Market,
		Outcome:   j.Outcome,
		Stake:     stake,
		Fee:       fee,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type marketResolvedJSON struct {
	ResolutionID string `json:"resolution_id"`
	Market       string `json:"market"`
	Outcome      int32  `json:"outcome"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseMarketResolved(data []byte) (*event.MarketResolved, error) {
	var j marketResolvedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MarketResolved: %w", err)
	}

	resolutionID, err := uuid.Parse(j.ResolutionID)
	if err != nil {
		return nil, fmt.Errorf("parse resolution_id: %w", err)
	}

	return &event.MarketResolved{
		ResolutionID: resolutionID,
		Market:       j.Market,
		Outcome:      j.Outcome,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

type payoutRedeemedJSON struct {
	RedemptionID string `json:"redemption_id"`
	TraderID     string `json:"trader_id"`
	Market       string `json:"market"`
	Payout       string `json:"payout"`
	Sequence     int64  `json:"sequence"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parsePayoutRedeemed(data []byte) (*event.PayoutRedeemed, error) {
	var j payoutRedeemedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayoutRedeemed: %w", err)
	}

	redemptionID, err := uuid.Parse(j.RedemptionID)
	if err != nil {
		return nil, fmt.Errorf("parse redemption_id: %w", err)
	}
	traderID, err := uuid.Parse(j.TraderID)
	if err != nil {
		return nil, fmt.Errorf("parse trader_id: %w", err)
	}
	payout, err := decimal.NewFromString(j.Payout)
	if err != nil {
		return nil, fmt.Errorf("parse payout: %w", err)
	}

	return &event.PayoutRedeemed{
		RedemptionID: redemptionID,
		TraderID:     traderID,
		Market:       j.Market,
		Payout:       payout,
		Sequence:     j.Sequence,
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}
