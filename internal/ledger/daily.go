package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayBucket truncates a timestamp to UTC midnight, expressed as unix
// seconds. All daily attribution keys off this bucket.
func DayBucket(ts time.Time) int64 {
	sec := ts.Unix()
	day := sec / 86400
	if sec < 0 && sec%86400 != 0 {
		day--
	}
	return day * 86400
}

// DailyKey identifies one trader's activity on one UTC day
type DailyKey struct {
	Trader uuid.UUID
	Day    int64
}

// DailyProfitRecord is the per-(trader, day) rollup. Placement activity is
// attributed to the placement day; realized profit and loss land on the day
// of settlement or redemption, not the day of placement.
type DailyProfitRecord struct {
	Trader uuid.UUID
	Day    int64

	PlacedStake    decimal.Decimal
	PlacedFees     decimal.Decimal
	RealizedProfit decimal.Decimal

	Markets map[string]struct{}
}

// NewDailyProfitRecord returns a zeroed record for the trader and day
func NewDailyProfitRecord(trader uuid.UUID, day int64) *DailyProfitRecord {
	return &DailyProfitRecord{
		Trader:         trader,
		Day:            day,
		PlacedStake:    decimal.Zero,
		PlacedFees:     decimal.Zero,
		RealizedProfit: decimal.Zero,
		Markets:        make(map[string]struct{}),
	}
}

// Key returns the map key for this record
func (d *DailyProfitRecord) Key() DailyKey {
	return DailyKey{Trader: d.Trader, Day: d.Day}
}

// Clone returns a copy safe to mutate without touching the original
func (d *DailyProfitRecord) Clone() *DailyProfitRecord {
	c := *d
	c.Markets = make(map[string]struct{}, len(d.Markets))
	for m := range d.Markets {
		c.Markets[m] = struct{}{}
	}
	return &c
}

// RecordBet attributes a placed bet to this day
func (d *DailyProfitRecord) RecordBet(market string, stake, fee decimal.Decimal) {
	d.PlacedStake = d.PlacedStake.Add(stake)
	d.PlacedFees = d.PlacedFees.Add(fee)
	d.Markets[market] = struct{}{}
}

// RealizeLoss debits a settled loss (stake plus fee) on this day
func (d *DailyProfitRecord) RealizeLoss(market string, amount decimal.Decimal) {
	d.RealizedProfit = d.RealizedProfit.Sub(amount)
	d.Markets[market] = struct{}{}
}

// RealizeProfit credits net redemption profit on this day. Net profit can
// be negative when the payout does not cover the remaining stake and fees.
func (d *DailyProfitRecord) RealizeProfit(market string, net decimal.Decimal) {
	d.RealizedProfit = d.RealizedProfit.Add(net)
	d.Markets[market] = struct{}{}
}
