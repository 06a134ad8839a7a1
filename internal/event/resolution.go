package event

import (
	"time"

	"github.com/google/uuid"
)

// MarketResolved announces the final outcome of a binary market.
// Idempotency key: resolution_id (UUID from the oracle/settlement feed).
// Outcome -1 marks the market INVALID: no side won, nothing is realized.
type MarketResolved struct {
	ResolutionID uuid.UUID // Idempotency key
	Market       string
	Outcome      int32 // 0, 1, or -1 (INVALID)
	Sequence     int64
	Timestamp    time.Time // Versioned input timestamp (NOT wall-clock)
}

func (r *MarketResolved) IdempotencyKey() string {
	return r.ResolutionID.String()
}

func (r *MarketResolved) EventType() EventType {
	return EventTypeMarketResolved
}

func (r *MarketResolved) MarketID() *string {
	m := r.Market
	return &m
}

func (r *MarketResolved) SourceSequence() int64 {
	return r.Sequence
}
