package ledger

import (
	"github.com/shopspring/decimal"
)

// GlobalStats is the singleton rollup across the whole venue
type GlobalStats struct {
	TotalStaked        decimal.Decimal
	TotalFees          decimal.Decimal
	TotalStakedSettled decimal.Decimal
	TotalFeesSettled   decimal.Decimal
	TotalPayout        decimal.Decimal

	BetCount    int64
	TraderCount int64
	MarketCount int64
}

// NewGlobalStats returns zeroed stats
func NewGlobalStats() *GlobalStats {
	return &GlobalStats{
		TotalStaked:        decimal.Zero,
		TotalFees:          decimal.Zero,
		TotalStakedSettled: decimal.Zero,
		TotalFeesSettled:   decimal.Zero,
		TotalPayout:        decimal.Zero,
	}
}

// Clone returns a copy safe to mutate without touching the original
func (g *GlobalStats) Clone() *GlobalStats {
	c := *g
	return &c
}

// StatsDelta accumulates an event's net effect on GlobalStats. Handlers
// build the delta while staging entity mutations; the engine applies it
// exactly once, after every cache committed. This keeps the singleton out
// of the read-modify-write path of individual handlers.
type StatsDelta struct {
	Staked        decimal.Decimal
	Fees          decimal.Decimal
	StakedSettled decimal.Decimal
	FeesSettled   decimal.Decimal
	Payout        decimal.Decimal

	Bets       int64
	NewTraders int64
	NewMarkets int64
}

// NewStatsDelta returns a zeroed delta
func NewStatsDelta() *StatsDelta {
	return &StatsDelta{
		Staked:        decimal.Zero,
		Fees:          decimal.Zero,
		StakedSettled: decimal.Zero,
		FeesSettled:   decimal.Zero,
		Payout:        decimal.Zero,
	}
}

// AddBet records a placed bet in the delta
func (d *StatsDelta) AddBet(stake, fee decimal.Decimal) {
	d.Staked = d.Staked.Add(stake)
	d.Fees = d.Fees.Add(fee)
	d.Bets++
}

// AddSettled records realized stake and fees (loss or redemption)
func (d *StatsDelta) AddSettled(stake, fees decimal.Decimal) {
	d.StakedSettled = d.StakedSettled.Add(stake)
	d.FeesSettled = d.FeesSettled.Add(fees)
}

// AddPayout records a redeemed payout
func (d *StatsDelta) AddPayout(payout decimal.Decimal) {
	d.Payout = d.Payout.Add(payout)
}

// IsZero reports whether applying the delta would change nothing
func (d *StatsDelta) IsZero() bool {
	return d.Staked.IsZero() && d.Fees.IsZero() &&
		d.StakedSettled.IsZero() && d.FeesSettled.IsZero() &&
		d.Payout.IsZero() &&
		d.Bets == 0 && d.NewTraders == 0 && d.NewMarkets == 0
}

// Apply folds the delta into the stats
func (d *StatsDelta) Apply(g *GlobalStats) {
	g.TotalStaked = g.TotalStaked.Add(d.Staked)
	g.TotalFees = g.TotalFees.Add(d.Fees)
	g.TotalStakedSettled = g.TotalStakedSettled.Add(d.StakedSettled)
	g.TotalFeesSettled = g.TotalFeesSettled.Add(d.FeesSettled)
	g.TotalPayout = g.TotalPayout.Add(d.Payout)
	g.BetCount += d.Bets
	g.TraderCount += d.NewTraders
	g.MarketCount += d.NewMarkets
}
