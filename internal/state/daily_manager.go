package state

import (
	"BetLedger/internal/ledger"
)

// DailyManager holds the per-(trader, UTC day) rollups
type DailyManager struct {
	records map[ledger.DailyKey]*ledger.DailyProfitRecord
}

func NewDailyManager() *DailyManager {
	return &DailyManager{
		records: make(map[ledger.DailyKey]*ledger.DailyProfitRecord),
	}
}

// Get returns the record or nil
func (dm *DailyManager) Get(key ledger.DailyKey) *ledger.DailyProfitRecord {
	return dm.records[key]
}

// Put inserts or replaces a record
func (dm *DailyManager) Put(d *ledger.DailyProfitRecord) {
	dm.records[d.Key()] = d
}

// Count returns the number of records held
func (dm *DailyManager) Count() int {
	return len(dm.records)
}

// All returns every record (for validation and persistence bootstrap)
func (dm *DailyManager) All() []*ledger.DailyProfitRecord {
	result := make([]*ledger.DailyProfitRecord, 0, len(dm.records))
	for _, d := range dm.records {
		result = append(result, d)
	}
	return result
}
