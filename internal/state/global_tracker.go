package state

import (
	"BetLedger/internal/ledger"
)

// GlobalTracker owns the venue-wide stats singleton. Handlers never touch
// it directly; they accumulate a StatsDelta and the engine folds the delta
// in once per committed event.
type GlobalTracker struct {
	stats *ledger.GlobalStats
}

func NewGlobalTracker() *GlobalTracker {
	return &GlobalTracker{
		stats: ledger.NewGlobalStats(),
	}
}

// Stats returns the live singleton
func (gt *GlobalTracker) Stats() *ledger.GlobalStats {
	return gt.stats
}

// Apply folds a committed event's delta into the singleton
func (gt *GlobalTracker) Apply(delta *ledger.StatsDelta) {
	delta.Apply(gt.stats)
}

// Restore replaces the singleton (used for bootstrap from storage)
func (gt *GlobalTracker) Restore(g *ledger.GlobalStats) {
	gt.stats = g
}
