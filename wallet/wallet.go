// Package wallet provides a client-side key pair and transaction
// builder, independent of any running Node — the role an external
// submitter of transactions plays, as opposed to node.CreateTransaction
// which is a validator originating its own traffic mid-simulation.
package wallet

import (
	"github.com/tolelom/bftsim/chain"
	"github.com/tolelom/bftsim/crypto"
)

// Wallet holds a key pair and builds signed transactions under it.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key.
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key, used as the
// sender identity and as a key-ownership prefix.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// NewTx builds and signs a transaction writing value to key under this
// wallet's identity at the given nonce. key must be prefixed with
// PubKey() or the state machine will reject it for lack of ownership.
func (w *Wallet) NewTx(key, value string, nonce uint64) chain.Transaction {
	tx := chain.Transaction{Sender: w.pub.Hex(), Key: key, Value: value, Nonce: nonce}
	tx.Sign(w.priv)
	return tx
}
