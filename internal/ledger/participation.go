package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParticipationKey identifies one trader's involvement in one market
type ParticipationKey struct {
	Trader uuid.UUID
	Market string
}

// MarketParticipation is the per-(trader, market) rollup. It mirrors the
// account columns scoped to a single market and additionally tracks the
// bet IDs that make it up. Summing a trader's participations reproduces
// the trader's account.
type MarketParticipation struct {
	Trader uuid.UUID
	Market string

	Staked        decimal.Decimal
	Fees          decimal.Decimal
	StakedSettled decimal.Decimal
	FeesSettled   decimal.Decimal
	Payout        decimal.Decimal

	BetCount int64
	BetIDs   []uuid.UUID
}

// NewMarketParticipation returns a zeroed participation row
func NewMarketParticipation(trader uuid.UUID, market string) *MarketParticipation {
	return &MarketParticipation{
		Trader:        trader,
		Market:        market,
		Staked:        decimal.Zero,
		Fees:          decimal.Zero,
		StakedSettled: decimal.Zero,
		FeesSettled:   decimal.Zero,
		Payout:        decimal.Zero,
	}
}

// Key returns the map key for this row
func (p *MarketParticipation) Key() ParticipationKey {
	return ParticipationKey{Trader: p.Trader, Market: p.Market}
}

// Clone returns a copy safe to mutate without touching the original
func (p *MarketParticipation) Clone() *MarketParticipation {
	c := *p
	c.BetIDs = make([]uuid.UUID, len(p.BetIDs))
	copy(c.BetIDs, p.BetIDs)
	return &c
}

// RecordBet adds a placed bet to this row
func (p *MarketParticipation) RecordBet(betID uuid.UUID, stake, fee decimal.Decimal) {
	p.Staked = p.Staked.Add(stake)
	p.Fees = p.Fees.Add(fee)
	p.BetCount++
	p.BetIDs = append(p.BetIDs, betID)
}

// SettleLoss moves a losing bet's stake and fee into the settled columns
func (p *MarketParticipation) SettleLoss(stake, fee decimal.Decimal) {
	p.StakedSettled = p.StakedSettled.Add(stake)
	p.FeesSettled = p.FeesSettled.Add(fee)
}

// Redeem settles the remaining stake and fees and credits the payout
func (p *MarketParticipation) Redeem(stake, fees, payout decimal.Decimal) {
	p.StakedSettled = p.StakedSettled.Add(stake)
	p.FeesSettled = p.FeesSettled.Add(fees)
	p.Payout = p.Payout.Add(payout)
}

// UnsettledStake returns stake on this market not yet realized
func (p *MarketParticipation) UnsettledStake() decimal.Decimal {
	return p.Staked.Sub(p.StakedSettled)
}

// UnsettledFees returns fees on this market not yet realized
func (p *MarketParticipation) UnsettledFees() decimal.Decimal {
	return p.Fees.Sub(p.FeesSettled)
}
