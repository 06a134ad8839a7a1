package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvariantValidator checks aggregation invariants. It operates on plain
// entity values so callers can feed it live state or staged clones.
type InvariantValidator struct{}

func NewInvariantValidator() *InvariantValidator {
	return &InvariantValidator{}
}

// ValidateAccount verifies settled never exceeds staked on a trader account
func (v *InvariantValidator) ValidateAccount(a *TraderAccount) error {
	if a.TotalStakedSettled.GreaterThan(a.TotalStaked) {
		return fmt.Errorf("account %s: settled stake %s exceeds staked %s",
			a.Trader, a.TotalStakedSettled, a.TotalStaked)
	}
	if a.TotalFeesSettled.GreaterThan(a.TotalFees) {
		return fmt.Errorf("account %s: settled fees %s exceed fees %s",
			a.Trader, a.TotalFeesSettled, a.TotalFees)
	}
	return nil
}

// ValidateParticipation verifies settled never exceeds staked on one row
func (v *InvariantValidator) ValidateParticipation(p *MarketParticipation) error {
	if p.StakedSettled.GreaterThan(p.Staked) {
		return fmt.Errorf("participation %s/%s: settled stake %s exceeds staked %s",
			p.Trader, p.Market, p.StakedSettled, p.Staked)
	}
	if p.FeesSettled.GreaterThan(p.Fees) {
		return fmt.Errorf("participation %s/%s: settled fees %s exceed fees %s",
			p.Trader, p.Market, p.FeesSettled, p.Fees)
	}
	return nil
}

// ValidateParticipationSum verifies a trader's participation rows sum to
// the trader's account across every column
func (v *InvariantValidator) ValidateParticipationSum(a *TraderAccount, rows []*MarketParticipation) error {
	staked := decimal.Zero
	fees := decimal.Zero
	stakedSettled := decimal.Zero
	feesSettled := decimal.Zero
	payout := decimal.Zero
	var bets int64

	for _, p := range rows {
		staked = staked.Add(p.Staked)
		fees = fees.Add(p.Fees)
		stakedSettled = stakedSettled.Add(p.StakedSettled)
		feesSettled = feesSettled.Add(p.FeesSettled)
		payout = payout.Add(p.Payout)
		bets += p.BetCount
	}

	if !staked.Equal(a.TotalStaked) || !fees.Equal(a.TotalFees) ||
		!stakedSettled.Equal(a.TotalStakedSettled) || !feesSettled.Equal(a.TotalFeesSettled) ||
		!payout.Equal(a.TotalPayout) || bets != a.BetCount {
		return fmt.Errorf("account %s: participation rows do not sum to account (staked %s vs %s, payout %s vs %s, bets %d vs %d)",
			a.Trader, staked, a.TotalStaked, payout, a.TotalPayout, bets, a.BetCount)
	}
	return nil
}

// ValidateGlobal verifies the global singleton equals the sum of all
// trader accounts
func (v *InvariantValidator) ValidateGlobal(g *GlobalStats, accounts []*TraderAccount) error {
	staked := decimal.Zero
	fees := decimal.Zero
	stakedSettled := decimal.Zero
	feesSettled := decimal.Zero
	payout := decimal.Zero
	var bets int64

	for _, a := range accounts {
		staked = staked.Add(a.TotalStaked)
		fees = fees.Add(a.TotalFees)
		stakedSettled = stakedSettled.Add(a.TotalStakedSettled)
		feesSettled = feesSettled.Add(a.TotalFeesSettled)
		payout = payout.Add(a.TotalPayout)
		bets += a.BetCount
	}

	if !staked.Equal(g.TotalStaked) || !fees.Equal(g.TotalFees) ||
		!stakedSettled.Equal(g.TotalStakedSettled) || !feesSettled.Equal(g.TotalFeesSettled) ||
		!payout.Equal(g.TotalPayout) || bets != g.BetCount {
		return fmt.Errorf("global stats do not sum from accounts (staked %s vs %s, bets %d vs %d)",
			staked, g.TotalStaked, bets, g.BetCount)
	}
	if int64(len(accounts)) != g.TraderCount {
		return fmt.Errorf("global trader count %d but %d accounts exist", g.TraderCount, len(accounts))
	}
	return nil
}

// ValidateBetSums verifies a participation row matches its bets: settled
// columns equal the sum of bets that left BetStatePlaced
func (v *InvariantValidator) ValidateBetSums(p *MarketParticipation, bets []*Bet) error {
	staked := decimal.Zero
	fees := decimal.Zero
	settledStake := decimal.Zero
	settledFees := decimal.Zero

	for _, b := range bets {
		staked = staked.Add(b.Stake)
		fees = fees.Add(b.Fee)
		if b.State != BetStatePlaced {
			settledStake = settledStake.Add(b.Stake)
			settledFees = settledFees.Add(b.Fee)
		}
	}

	if !staked.Equal(p.Staked) || !fees.Equal(p.Fees) {
		return fmt.Errorf("participation %s/%s: bets sum to stake %s fees %s, row has %s/%s",
			p.Trader, p.Market, staked, fees, p.Staked, p.Fees)
	}
	if !settledStake.Equal(p.StakedSettled) || !settledFees.Equal(p.FeesSettled) {
		return fmt.Errorf("participation %s/%s: settled bets sum to %s/%s, row has %s/%s",
			p.Trader, p.Market, settledStake, settledFees, p.StakedSettled, p.FeesSettled)
	}
	return nil
}
