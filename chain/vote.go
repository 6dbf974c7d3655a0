package chain

import (
	"fmt"

	"github.com/tolelom/bftsim/canon"
	"github.com/tolelom/bftsim/crypto"
)

// VoteType distinguishes the two phases of the voting round.
type VoteType string

const (
	Prevote   VoteType = "PREVOTE"
	Precommit VoteType = "PRECOMMIT"
)

// Vote is a single validator's signed statement that it saw BlockHash
// at Height during phase Type.
type Vote struct {
	Type      VoteType
	Height    uint64
	BlockHash string
	Voter     string
	Signature string
}

// SigningPayload is every field except Signature, signed under
// crypto.ContextVote.
func (v Vote) SigningPayload() canon.Value {
	return canon.Map{
		"type":       string(v.Type),
		"height":     v.Height,
		"block_hash": v.BlockHash,
		"voter":      v.Voter,
	}
}

// Sign computes v.Signature over v's signing payload.
func (v *Vote) Sign(priv crypto.PrivateKey) {
	v.Signature = crypto.Sign(priv, crypto.ContextVote, v.SigningPayload())
}

// ValidateSignature verifies v.Signature against v.Voter under the VOTE
// context.
func (v Vote) ValidateSignature() error {
	pub, err := crypto.PubKeyFromHex(v.Voter)
	if err != nil {
		return fmt.Errorf("chain: vote voter: %w", err)
	}
	return crypto.Verify(pub, crypto.ContextVote, v.SigningPayload(), v.Signature)
}
