package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetPlaced represents an accepted bet from the order intake.
// Idempotency key: bet_id (UUID assigned upstream).
type BetPlaced struct {
	BetID     uuid.UUID // Idempotency key
	TraderID  uuid.UUID
	Market    string
	Outcome   int32 // Binary outcome the bet backs: 0 or 1
	Stake     decimal.Decimal
	Fee       decimal.Decimal
	Sequence  int64     // Source sequence from the intake stream
	Timestamp time.Time // Versioned input timestamp (NOT wall-clock)
}

func (b *BetPlaced) IdempotencyKey() string {
	return b.BetID.String()
}

func (b *BetPlaced) EventType() EventType {
	return EventTypeBetPlaced
}

func (b *BetPlaced) MarketID() *string {
	m := b.Market
	return &m
}

func (b *BetPlaced) SourceSequence() int64 {
	return b.Sequence
}
