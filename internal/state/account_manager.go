package state

import (
	"BetLedger/internal/ledger"

	"github.com/google/uuid"
)

// AccountManager holds the per-trader rollups
type AccountManager struct {
	accounts map[uuid.UUID]*ledger.TraderAccount
}

func NewAccountManager() *AccountManager {
	return &AccountManager{
		accounts: make(map[uuid.UUID]*ledger.TraderAccount),
	}
}

// Get returns the account or nil
func (am *AccountManager) Get(trader uuid.UUID) *ledger.TraderAccount {
	return am.accounts[trader]
}

// Put inserts or replaces an account
func (am *AccountManager) Put(a *ledger.TraderAccount) {
	am.accounts[a.Trader] = a
}

// Has reports whether the trader is known
func (am *AccountManager) Has(trader uuid.UUID) bool {
	_, ok := am.accounts[trader]
	return ok
}

// Count returns the number of known traders
func (am *AccountManager) Count() int {
	return len(am.accounts)
}

// All returns every account (for validation and persistence bootstrap)
func (am *AccountManager) All() []*ledger.TraderAccount {
	result := make([]*ledger.TraderAccount, 0, len(am.accounts))
	for _, a := range am.accounts {
		result = append(result, a)
	}
	return result
}
