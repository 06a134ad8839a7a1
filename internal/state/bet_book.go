package state

import (
	"BetLedger/internal/ledger"

	"github.com/google/uuid"
)

// BetBook holds every bet by ID with secondary indexes for settlement
// (all bets on a market) and redemption (all bets of one trader on one
// market). Indexes are append-only; a bet never changes ID, trader, or
// market after capture.
type BetBook struct {
	bets     map[uuid.UUID]*ledger.Bet
	byMarket map[string][]uuid.UUID
	byPair   map[ledger.ParticipationKey][]uuid.UUID
}

func NewBetBook() *BetBook {
	return &BetBook{
		bets:     make(map[uuid.UUID]*ledger.Bet),
		byMarket: make(map[string][]uuid.UUID),
		byPair:   make(map[ledger.ParticipationKey][]uuid.UUID),
	}
}

// Get returns the bet or nil
func (bb *BetBook) Get(id uuid.UUID) *ledger.Bet {
	return bb.bets[id]
}

// Put inserts or replaces a bet, maintaining indexes on first insert
func (bb *BetBook) Put(bet *ledger.Bet) {
	if _, exists := bb.bets[bet.ID]; !exists {
		bb.byMarket[bet.Market] = append(bb.byMarket[bet.Market], bet.ID)
		pair := ledger.ParticipationKey{Trader: bet.Trader, Market: bet.Market}
		bb.byPair[pair] = append(bb.byPair[pair], bet.ID)
	}
	bb.bets[bet.ID] = bet
}

// MarketBets returns the IDs of every bet on a market, in capture order
func (bb *BetBook) MarketBets(market string) []uuid.UUID {
	return bb.byMarket[market]
}

// PairBets returns the IDs of one trader's bets on one market, in
// capture order
func (bb *BetBook) PairBets(key ledger.ParticipationKey) []uuid.UUID {
	return bb.byPair[key]
}

// Count returns the number of bets held
func (bb *BetBook) Count() int {
	return len(bb.bets)
}

// All returns every bet (for validation and persistence bootstrap)
func (bb *BetBook) All() []*ledger.Bet {
	result := make([]*ledger.Bet, 0, len(bb.bets))
	for _, b := range bb.bets {
		result = append(result, b)
	}
	return result
}
