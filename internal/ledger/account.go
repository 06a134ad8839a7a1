package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TraderAccount is the per-trader rollup across all markets. The settled
// columns track how much of the staked totals has been realized, as a loss
// or through redemption. Stake and fee move into the settled columns
// together, never separately.
type TraderAccount struct {
	Trader uuid.UUID

	TotalStaked        decimal.Decimal
	TotalFees          decimal.Decimal
	TotalStakedSettled decimal.Decimal
	TotalFeesSettled   decimal.Decimal
	TotalPayout        decimal.Decimal

	BetCount int64

	FirstActiveAt time.Time
	LastActiveAt  time.Time
}

// NewTraderAccount returns a zeroed account for a trader first seen at ts
func NewTraderAccount(trader uuid.UUID, ts time.Time) *TraderAccount {
	return &TraderAccount{
		Trader:             trader,
		TotalStaked:        decimal.Zero,
		TotalFees:          decimal.Zero,
		TotalStakedSettled: decimal.Zero,
		TotalFeesSettled:   decimal.Zero,
		TotalPayout:        decimal.Zero,
		FirstActiveAt:      ts,
		LastActiveAt:       ts,
	}
}

// Clone returns a copy safe to mutate without touching the original
func (a *TraderAccount) Clone() *TraderAccount {
	c := *a
	return &c
}

// RecordBet adds a placed bet's stake and fee to the open totals
func (a *TraderAccount) RecordBet(stake, fee decimal.Decimal, at time.Time) {
	a.TotalStaked = a.TotalStaked.Add(stake)
	a.TotalFees = a.TotalFees.Add(fee)
	a.BetCount++
	if at.After(a.LastActiveAt) {
		a.LastActiveAt = at
	}
}

// SettleLoss moves a losing bet's stake and fee into the settled columns
func (a *TraderAccount) SettleLoss(stake, fee decimal.Decimal) {
	a.TotalStakedSettled = a.TotalStakedSettled.Add(stake)
	a.TotalFeesSettled = a.TotalFeesSettled.Add(fee)
}

// Redeem settles the remaining stake and fees on a winning market and
// credits the payout. Redemption counts as trader activity.
func (a *TraderAccount) Redeem(stake, fees, payout decimal.Decimal, at time.Time) {
	a.TotalStakedSettled = a.TotalStakedSettled.Add(stake)
	a.TotalFeesSettled = a.TotalFeesSettled.Add(fees)
	a.TotalPayout = a.TotalPayout.Add(payout)
	if at.After(a.LastActiveAt) {
		a.LastActiveAt = at
	}
}

// UnsettledStake returns stake still tied up in pending bets
func (a *TraderAccount) UnsettledStake() decimal.Decimal {
	return a.TotalStaked.Sub(a.TotalStakedSettled)
}

// UnsettledFees returns fees on bets not yet realized
func (a *TraderAccount) UnsettledFees() decimal.Decimal {
	return a.TotalFees.Sub(a.TotalFeesSettled)
}
