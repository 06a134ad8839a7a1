package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutRedeemed represents a trader collecting winnings from a resolved
// market. Payout is the gross amount transferred; the ledger derives net
// profit from the trader's still-unsettled stake and fees on the market.
// Idempotency key: redemption_id (UUID from the payout service).
type PayoutRedeemed struct {
	RedemptionID uuid.UUID // Idempotency key
	TraderID     uuid.UUID
	Market       string
	Payout       decimal.Decimal
	Sequence     int64
	Timestamp    time.Time // Versioned input timestamp (NOT wall-clock)
}

func (p *PayoutRedeemed) IdempotencyKey() string {
	return p.RedemptionID.String()
}

func (p *PayoutRedeemed) EventType() EventType {
	return EventTypePayoutRedeemed
}

func (p *PayoutRedeemed) MarketID() *string {
	m := p.Market
	return &m
}

func (p *PayoutRedeemed) SourceSequence() int64 {
	return p.Sequence
}
