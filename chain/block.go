package chain

import (
	"fmt"

	"github.com/tolelom/bftsim/canon"
	"github.com/tolelom/bftsim/crypto"
)

// GenesisHash is the literal parent hash referenced by the height-1
// block, since there is no height-0 block to hash.
const GenesisHash = "GENESIS_HASH"

// Block is a single height's proposal: an ordered list of transactions
// plus the proposer's claim of the resulting state commitment.
type Block struct {
	Height     uint64
	ParentHash string
	Txs        []Transaction
	StateHash  string
	Proposer   string
	Timestamp  int64
	Signature  string
}

// signingPayload is the payload signed under crypto.ContextHeader. Per
// the two-phase dissemination protocol, the txs field is always encoded
// as an empty sequence here — the header is sent (and verified) before
// the body ever arrives, so the header's signature cannot depend on
// transaction content the receiver does not yet have. The proposer
// signs with this same empty-txs payload so that header verification
// and the eventual full-block verification use byte-identical input.
// Transaction integrity within an accepted block is instead guaranteed
// by the state-commitment check in statemachine.ApplyBlock, not by the
// block signature.
func (b Block) signingPayload() canon.Value {
	return canon.Map{
		"height":      b.Height,
		"parent_hash": b.ParentHash,
		"txs":         canon.Seq{},
		"state_hash":  b.StateHash,
		"proposer":    b.Proposer,
		"timestamp":   b.Timestamp,
	}
}

// fullPayload is every field, Signature included, used to compute the
// block hash (which, unlike the signature, does cover the actual
// transaction content).
func (b Block) fullPayload() canon.Value {
	txs := make(canon.Seq, len(b.Txs))
	for i, tx := range b.Txs {
		m := tx.SigningPayload().(canon.Map)
		m["signature"] = tx.Signature
		txs[i] = m
	}
	return canon.Map{
		"height":      b.Height,
		"parent_hash": b.ParentHash,
		"txs":         txs,
		"state_hash":  b.StateHash,
		"proposer":    b.Proposer,
		"timestamp":   b.Timestamp,
		"signature":   b.Signature,
	}
}

// Sign computes b.Signature under the HEADER context.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Signature = crypto.Sign(priv, crypto.ContextHeader, b.signingPayload())
}

// ValidateSignature verifies b.Signature against b.Proposer.
func (b Block) ValidateSignature() error {
	pub, err := crypto.PubKeyFromHex(b.Proposer)
	if err != nil {
		return fmt.Errorf("chain: block proposer: %w", err)
	}
	return crypto.Verify(pub, crypto.ContextHeader, b.signingPayload(), b.Signature)
}

// Hash returns the block hash: SHA-256 of the canonical encoding of the
// full record, signature included.
func (b Block) Hash() string {
	return crypto.HashValue(b.fullPayload())
}
