package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const GenesisHashSeed = "BetLedger:genesis:v1"

// StateHasher maintains the audit hash chain:
// hash[N] = SHA-256(hash[N-1] || sequence || digest of ledger state).
// Two runs over the same event stream produce the same chain, so any
// divergence between replicas or across a restart is detectable.
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(GenesisHashSeed))}
}

// ComputeHash advances the chain by one link and returns the new tip.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	hasher := sha256.New()
	hasher.Write(h.prevHash[:])
	hasher.Write(seq[:])
	hasher.Write(stateDigest)
	hasher.Sum(h.prevHash[:0])

	return h.prevHash
}

// GetPrevHash returns the current chain tip.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// Restore seeds the chain tip from the persisted event log on boot.
func (h *StateHasher) Restore(prevHash [32]byte) {
	h.prevHash = prevHash
}
