// Package statemachine implements the replicated key/value state every
// node applies finalized blocks to. It has no persistence of its own —
// state lives for the lifetime of one simulation run and is rebuilt by
// replaying blocks, never loaded from disk.
package statemachine

import (
	"strings"
	"sync"

	"github.com/tolelom/bftsim/canon"
	"github.com/tolelom/bftsim/chain"
	"github.com/tolelom/bftsim/crypto"
)

// StateMachine holds the key/value store and the replay-protection
// nonce table. Both are guarded by mu since indexer and CLI query paths
// may read StateHash from a different goroutine than the one applying
// blocks.
type StateMachine struct {
	mu     sync.RWMutex
	data   map[string]string
	nonces map[string]uint64
}

// New returns an empty state machine: no keys, no recorded nonces.
func New() *StateMachine {
	return &StateMachine{
		data:   make(map[string]string),
		nonces: make(map[string]uint64),
	}
}

// StateHash is SHA-256 of the canonical encoding of data alone. The
// nonce table is deliberately excluded from the commitment: two
// histories that differ only in nonce progression hash identically.
// This is preserved from the source this system was distilled from,
// not a Go-specific shortcut.
func (s *StateMachine) StateHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(canon.Map, len(s.data))
	for k, v := range s.data {
		m[k] = v
	}
	return crypto.HashValue(m)
}

// Get returns the value stored at key and whether it exists.
func (s *StateMachine) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// ValidateTransaction checks everything short of applying tx: signature,
// ownership, and nonce ordering. It does not mutate state.
func (s *StateMachine) ValidateTransaction(tx chain.Transaction) error {
	if err := tx.ValidateSignature(); err != nil {
		return err
	}
	if !strings.HasPrefix(tx.Key, tx.Sender) {
		return errOwnership{sender: tx.Sender, key: tx.Key}
	}
	s.mu.RLock()
	lastNonce, seen := s.nonces[tx.Sender]
	s.mu.RUnlock()
	if seen && tx.Nonce <= lastNonce {
		return errReplay{sender: tx.Sender, nonce: tx.Nonce, lastNonce: lastNonce}
	}
	return nil
}

// ApplyTransaction validates tx and, if valid, writes its key/value and
// advances the sender's nonce. It reports whether the transaction was
// applied; an invalid transaction is silently skipped by the caller
// (ApplyBlock), not treated as a fatal error.
func (s *StateMachine) ApplyTransaction(tx chain.Transaction) bool {
	if err := s.ValidateTransaction(tx); err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tx.Key] = tx.Value
	s.nonces[tx.Sender] = tx.Nonce
	return true
}

// ApplyBlock applies every transaction in b in order, best-effort: a
// transaction that fails validation is skipped, not treated as
// grounds to reject the whole block. After applying, the resulting
// StateHash is compared against b.StateHash; a mismatch means the
// proposer's claimed post-state does not match what this node
// actually computed, and ApplyBlock reports false. The transactions'
// writes are not rolled back either way.
func (s *StateMachine) ApplyBlock(b chain.Block) bool {
	for _, tx := range b.Txs {
		s.ApplyTransaction(tx)
	}
	return s.StateHash() == b.StateHash
}

type errOwnership struct {
	sender string
	key    string
}

func (e errOwnership) Error() string {
	return "statemachine: key " + e.key + " does not belong to sender " + e.sender
}

type errReplay struct {
	sender    string
	nonce     uint64
	lastNonce uint64
}

func (e errReplay) Error() string {
	return "statemachine: replayed or stale nonce from " + e.sender
}
