package query

import (
	"time"

	"github.com/google/uuid"
)

// Monetary fields are decimal strings taken straight from NUMERIC columns.
// Every response carries AsOfSequence, the last event sequence the tables
// reflect, so callers can reason about read freshness.

// AccountResponse represents a trader account rollup for API queries.
type AccountResponse struct {
	TraderID           uuid.UUID `json:"trader_id"`
	TotalStaked        string    `json:"total_staked"`
	TotalFees          string    `json:"total_fees"`
	TotalStakedSettled string    `json:"total_staked_settled"`
	TotalFeesSettled   string    `json:"total_fees_settled"`
	TotalPayout        string    `json:"total_payout"`
	BetCount           int64     `json:"bet_count"`
	FirstActiveAt      time.Time `json:"first_active_at"`
	LastActiveAt       time.Time `json:"last_active_at"`
	AsOfSequence       int64     `json:"as_of_sequence"`
}

// ParticipationResponse represents a (trader, market) rollup for API queries.
type ParticipationResponse struct {
	TraderID      uuid.UUID `json:"trader_id"`
	MarketID      string    `json:"market_id"`
	Staked        string    `json:"staked"`
	Fees          string    `json:"fees"`
	StakedSettled string    `json:"staked_settled"`
	FeesSettled   string    `json:"fees_settled"`
	Payout        string    `json:"payout"`
	BetCount      int64     `json:"bet_count"`
	BetIDs        []string  `json:"bet_ids"`
	AsOfSequence  int64     `json:"as_of_sequence"`
}

// DailyProfitResponse represents one trader-day rollup for API queries.
// Day is UTC midnight in unix seconds.
type DailyProfitResponse struct {
	TraderID       uuid.UUID `json:"trader_id"`
	Day            int64     `json:"day"`
	PlacedStake    string    `json:"placed_stake"`
	PlacedFees     string    `json:"placed_fees"`
	RealizedProfit string    `json:"realized_profit"`
	Markets        []string  `json:"markets"`
	AsOfSequence   int64     `json:"as_of_sequence"`
}

// GlobalStatsResponse represents the venue-wide rollup for API queries.
type GlobalStatsResponse struct {
	TotalStaked        string `json:"total_staked"`
	TotalFees          string `json:"total_fees"`
	TotalStakedSettled string `json:"total_staked_settled"`
	TotalFeesSettled   string `json:"total_fees_settled"`
	TotalPayout        string `json:"total_payout"`
	BetCount           int64  `json:"bet_count"`
	TraderCount        int64  `json:"trader_count"`
	MarketCount        int64  `json:"market_count"`
	AsOfSequence       int64  `json:"as_of_sequence"`
}

// BetResponse represents a single bet record for API queries.
type BetResponse struct {
	BetID        uuid.UUID `json:"bet_id"`
	TraderID     uuid.UUID `json:"trader_id"`
	MarketID     string    `json:"market_id"`
	Outcome      int32     `json:"outcome"`
	Stake        string    `json:"stake"`
	Fee          string    `json:"fee"`
	State        int32     `json:"state"`
	PlacedAt     time.Time `json:"placed_at"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// LeaderboardEntry is one row of the realized-profit ranking.
type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	TraderID     uuid.UUID `json:"trader_id"`
	NetProfit    string    `json:"net_profit"`
	SettledStake string    `json:"settled_stake"`
	TotalPayout  string    `json:"total_payout"`
	BetCount     int64     `json:"bet_count"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	AccountDrift    string  `json:"account_drift,omitempty"`
}
