package state

import (
	"BetLedger/internal/ledger"
)

// MarketRegistry tracks every market the ledger has seen. Markets enter
// the registry when the first bet references them.
type MarketRegistry struct {
	markets map[string]*ledger.Market
}

func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		markets: make(map[string]*ledger.Market),
	}
}

// Get returns the market or nil
func (mr *MarketRegistry) Get(id string) *ledger.Market {
	return mr.markets[id]
}

// Put inserts or replaces a market
func (mr *MarketRegistry) Put(m *ledger.Market) {
	mr.markets[m.ID] = m
}

// Has reports whether the market is known
func (mr *MarketRegistry) Has(id string) bool {
	_, ok := mr.markets[id]
	return ok
}

// Count returns the number of known markets
func (mr *MarketRegistry) Count() int {
	return len(mr.markets)
}

// All returns every market (for validation and persistence bootstrap)
func (mr *MarketRegistry) All() []*ledger.Market {
	result := make([]*ledger.Market, 0, len(mr.markets))
	for _, m := range mr.markets {
		result = append(result, m)
	}
	return result
}
