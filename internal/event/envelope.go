package event

import (
	"time"
)

// EventType discriminates event payloads in the envelope and the log.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeBetPlaced
	EventTypeMarketResolved
	EventTypePayoutRedeemed
)

func (et EventType) String() string {
	switch et {
	case EventTypeBetPlaced:
		return "BetPlaced"
	case EventTypeMarketResolved:
		return "MarketResolved"
	case EventTypePayoutRedeemed:
		return "PayoutRedeemed"
	default:
		return "Unknown"
	}
}

// Event is what every typed payload implements so the engine can dedup
// and order it without knowing its shape.
type Event interface {
	// IdempotencyKey returns the stable dedup key (bet, resolution, or
	// redemption ID).
	IdempotencyKey() string

	// EventType returns the discriminator.
	EventType() EventType

	// MarketID returns the market context, nil for global events.
	MarketID() *string

	// SourceSequence returns the upstream ordering key.
	SourceSequence() int64
}

// EventEnvelope is the committed form of an event, written to the log
// and handed to persistence and publishing.
type EventEnvelope struct {
	// Sequence is the global monotonic position assigned by the engine.
	Sequence int64

	// IdempotencyKey is the upstream dedup key.
	IdempotencyKey string

	EventType EventType

	// MarketID is the market context, nil for global events.
	MarketID *string

	// Timestamp is the event's input timestamp, never wall-clock, so
	// replays reproduce identical daily buckets.
	Timestamp time.Time

	// SourceSequence is the upstream position used for gap detection.
	SourceSequence int64

	// Payload is the JSON-encoded typed event.
	Payload []byte

	// StateHash digests the ledger state AFTER this event; PrevHash
	// links to the previous envelope, forming the audit chain.
	StateHash [32]byte
	PrevHash  [32]byte
}
