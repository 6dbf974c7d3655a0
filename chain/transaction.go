// Package chain defines the signed records exchanged and stored by the
// system: Transaction, Block, and Vote. None of these types mutate
// after construction — tampering with any signed field invalidates the
// signature computed over the remaining fields. A Block's signature
// does not cover its Txs (see Block.signingPayload); its hash does.
package chain

import (
	"errors"
	"fmt"

	"github.com/tolelom/bftsim/canon"
	"github.com/tolelom/bftsim/crypto"
)

// Transaction is a single signed write to the replicated key/value
// state: set Key to Value, guarded by a strictly increasing Nonce per
// sender. Sender is the hex-encoded ed25519 public key of the author.
type Transaction struct {
	Sender    string
	Key       string
	Value     string
	Nonce     uint64
	Signature string
}

// SigningPayload is every field except Signature, canonically encoded
// and signed under crypto.ContextTx.
func (tx Transaction) SigningPayload() canon.Value {
	return canon.Map{
		"sender": tx.Sender,
		"key":    tx.Key,
		"value":  tx.Value,
		"nonce":  tx.Nonce,
	}
}

// Sign computes tx.Signature over tx's signing payload.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	tx.Signature = crypto.Sign(priv, crypto.ContextTx, tx.SigningPayload())
}

// ValidateSignature verifies tx.Signature against tx.Sender under the TX
// context. It does not check nonce or ownership rules — that is
// statemachine's job.
func (tx Transaction) ValidateSignature() error {
	if tx.Sender == "" {
		return errors.New("chain: transaction missing sender")
	}
	pub, err := crypto.PubKeyFromHex(tx.Sender)
	if err != nil {
		return fmt.Errorf("chain: transaction sender: %w", err)
	}
	return crypto.Verify(pub, crypto.ContextTx, tx.SigningPayload(), tx.Signature)
}
