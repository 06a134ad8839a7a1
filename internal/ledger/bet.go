package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BetState tracks the settlement lifecycle of a bet
type BetState int32

const (
	// BetStatePlaced is the initial state; the bet awaits resolution
	BetStatePlaced BetState = iota

	// BetStateSettledLoss means the market resolved against the bet
	BetStateSettledLoss

	// BetStateSettledWin means the trader redeemed the winning position
	BetStateSettledWin
)

func (s BetState) String() string {
	switch s {
	case BetStatePlaced:
		return "placed"
	case BetStateSettledLoss:
		return "settled_loss"
	case BetStateSettledWin:
		return "settled_win"
	default:
		return "unknown"
	}
}

// Bet is the ledger record of a single accepted bet. Stake and Fee are
// captured at placement and never change; only State transitions.
type Bet struct {
	ID       uuid.UUID
	Trader   uuid.UUID
	Market   string
	Outcome  int32 // Binary outcome the bet backs: 0 or 1
	Stake    decimal.Decimal
	Fee      decimal.Decimal
	PlacedAt time.Time
	State    BetState
}

// Clone returns a copy safe to mutate without touching the original
func (b *Bet) Clone() *Bet {
	c := *b
	return &c
}

// Settle transitions the bet out of BetStatePlaced. A bet settles at most
// once; a second transition is an invariant violation, not a no-op.
func (b *Bet) Settle(to BetState) error {
	if b.State != BetStatePlaced {
		return fmt.Errorf("bet %s already settled as %s", b.ID, b.State)
	}
	if to != BetStateSettledLoss && to != BetStateSettledWin {
		return fmt.Errorf("bet %s: invalid settlement state %d", b.ID, to)
	}
	b.State = to
	return nil
}

// Cost returns stake plus fee, the total the trader paid to enter
func (b *Bet) Cost() decimal.Decimal {
	return b.Stake.Add(b.Fee)
}
