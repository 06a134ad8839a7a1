package ledger

import (
	"fmt"
	"time"
)

// OutcomeInvalid marks a market voided by the oracle. No side won and no
// loss is realized; positions rest until a refund flow outside this
// subsystem handles them.
const OutcomeInvalid int32 = -1

// ValidOutcome reports whether o is a winnable binary outcome
func ValidOutcome(o int32) bool {
	return o == 0 || o == 1
}

// Market is the registry entry for a binary prediction market. Markets are
// created implicitly by the first bet referencing them.
type Market struct {
	ID         string
	Resolved   bool
	Outcome    int32
	ResolvedAt time.Time
}

// Clone returns a copy safe to mutate without touching the original
func (m *Market) Clone() *Market {
	c := *m
	return &c
}

// Resolve records the final outcome. Resolution happens once; a repeat is
// reported so the caller can ignore the duplicate.
func (m *Market) Resolve(outcome int32, at time.Time) error {
	if m.Resolved {
		return fmt.Errorf("market %s already resolved with outcome %d", m.ID, m.Outcome)
	}
	if !ValidOutcome(outcome) && outcome != OutcomeInvalid {
		return fmt.Errorf("market %s: unknown outcome %d", m.ID, outcome)
	}
	m.Resolved = true
	m.Outcome = outcome
	m.ResolvedAt = at
	return nil
}

// Won reports whether a bet backing betOutcome won this market. Always
// false while unresolved or when the market resolved INVALID.
func (m *Market) Won(betOutcome int32) bool {
	return m.Resolved && ValidOutcome(m.Outcome) && m.Outcome == betOutcome
}
