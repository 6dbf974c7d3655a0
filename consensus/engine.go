// Package consensus tallies votes by (height, phase, block hash) and
// answers quorum queries. It does not verify vote signatures or drive
// the propose/prevote/precommit progression — that is node's job; this
// package is the shared bookkeeping underneath it.
package consensus

import (
	"sync"

	"github.com/tolelom/bftsim/chain"
)

// Engine is one validator's view of the vote tally. A validator-set
// membership check in AddVote keeps an attacker who is not a validator
// from inflating any tally.
type Engine struct {
	mu         sync.RWMutex
	validators map[string]struct{}
	threshold  int
	// votes[height][phase][blockHash] = set of voter pubkeys.
	votes map[uint64]map[chain.VoteType]map[string]map[string]struct{}
}

// New builds an Engine for a fixed validator set. Threshold is
// floor(2n/3) + 1, the smallest count that guarantees any two quorums
// share at least one honest validator when at most floor((n-1)/3) are
// faulty.
func New(validators []string) *Engine {
	set := make(map[string]struct{}, len(validators))
	for _, v := range validators {
		set[v] = struct{}{}
	}
	n := len(validators)
	return &Engine{
		validators: set,
		threshold:  (n*2)/3 + 1,
		votes:      make(map[uint64]map[chain.VoteType]map[string]map[string]struct{}),
	}
}

// Threshold returns the number of matching votes required for a quorum.
func (e *Engine) Threshold() int {
	return e.threshold
}

// AddVote records v if its voter is a known validator. It reports
// whether the vote was recorded; a vote from outside the validator set
// is rejected without error, mirroring the source's add_vote contract.
func (e *Engine) AddVote(v chain.Vote) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.validators[v.Voter]; !ok {
		return false
	}
	byPhase, ok := e.votes[v.Height]
	if !ok {
		byPhase = make(map[chain.VoteType]map[string]map[string]struct{})
		e.votes[v.Height] = byPhase
	}
	byHash, ok := byPhase[v.Type]
	if !ok {
		byHash = make(map[string]map[string]struct{})
		byPhase[v.Type] = byHash
	}
	voters, ok := byHash[v.BlockHash]
	if !ok {
		voters = make(map[string]struct{})
		byHash[v.BlockHash] = voters
	}
	voters[v.Voter] = struct{}{}
	return true
}

// CheckThreshold reports whether blockHash has reached quorum at height
// during phase.
func (e *Engine) CheckThreshold(height uint64, phase chain.VoteType, blockHash string) bool {
	return e.VoteCount(height, phase, blockHash) >= e.threshold
}

// VoteCount returns how many distinct validators have voted for
// blockHash at height during phase.
func (e *Engine) VoteCount(height uint64, phase chain.VoteType, blockHash string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	voters, ok := e.votes[height][phase][blockHash]
	if !ok {
		return 0
	}
	return len(voters)
}

// VotingPower returns the size of the validator set.
func (e *Engine) VotingPower() int {
	return len(e.validators)
}
