package state

import (
	"BetLedger/internal/ledger"

	"github.com/google/uuid"
)

// ParticipationManager holds the per-(trader, market) rollups
type ParticipationManager struct {
	rows map[ledger.ParticipationKey]*ledger.MarketParticipation
}

func NewParticipationManager() *ParticipationManager {
	return &ParticipationManager{
		rows: make(map[ledger.ParticipationKey]*ledger.MarketParticipation),
	}
}

// Get returns the participation row or nil
func (pm *ParticipationManager) Get(key ledger.ParticipationKey) *ledger.MarketParticipation {
	return pm.rows[key]
}

// Put inserts or replaces a row
func (pm *ParticipationManager) Put(p *ledger.MarketParticipation) {
	pm.rows[p.Key()] = p
}

// Count returns the number of rows held
func (pm *ParticipationManager) Count() int {
	return len(pm.rows)
}

// TraderRows returns every participation row for one trader (for
// validation against the trader's account)
func (pm *ParticipationManager) TraderRows(trader uuid.UUID) []*ledger.MarketParticipation {
	result := make([]*ledger.MarketParticipation, 0)
	for key, p := range pm.rows {
		if key.Trader == trader {
			result = append(result, p)
		}
	}
	return result
}

// All returns every row (for validation and persistence bootstrap)
func (pm *ParticipationManager) All() []*ledger.MarketParticipation {
	result := make([]*ledger.MarketParticipation, 0, len(pm.rows))
	for _, p := range pm.rows {
		result = append(result, p)
	}
	return result
}
