package chain

import (
	"testing"

	"github.com/tolelom/bftsim/crypto"
)

func mustKeyPair(t *testing.T) (crypto.PrivateKey, crypto.PublicKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	return priv, pub
}

func TestTransactionSignVerify(t *testing.T) {
	priv, pub := mustKeyPair(t)
	tx := Transaction{Sender: pub.Hex(), Key: pub.Hex() + "/color", Value: "blue", Nonce: 1}
	tx.Sign(priv)
	if err := tx.ValidateSignature(); err != nil {
		t.Fatalf("valid transaction failed to verify: %v", err)
	}
}

func TestTransactionTamperRejected(t *testing.T) {
	priv, pub := mustKeyPair(t)
	tx := Transaction{Sender: pub.Hex(), Key: pub.Hex() + "/color", Value: "blue", Nonce: 1}
	tx.Sign(priv)
	tx.Value = "red"
	if err := tx.ValidateSignature(); err == nil {
		t.Fatal("tampered transaction verified, want failure")
	}
}

func TestTransactionForgedSenderRejected(t *testing.T) {
	_, pub := mustKeyPair(t)
	otherPriv, _ := mustKeyPair(t)
	tx := Transaction{Sender: pub.Hex(), Key: pub.Hex() + "/color", Value: "blue", Nonce: 1}
	tx.Sign(otherPriv)
	if err := tx.ValidateSignature(); err == nil {
		t.Fatal("transaction signed by a different key verified, want failure")
	}
}

func TestTransactionMissingSender(t *testing.T) {
	tx := Transaction{Key: "x", Value: "y", Nonce: 1}
	if err := tx.ValidateSignature(); err == nil {
		t.Fatal("expected error for missing sender")
	}
}

func TestBlockSignVerify(t *testing.T) {
	priv, pub := mustKeyPair(t)
	b := Block{
		Height:     1,
		ParentHash: GenesisHash,
		StateHash:  "abc",
		Proposer:   pub.Hex(),
		Timestamp:  1000,
	}
	b.Sign(priv)
	if err := b.ValidateSignature(); err != nil {
		t.Fatalf("valid block failed to verify: %v", err)
	}
}

func TestBlockHeaderSignatureIgnoresTxs(t *testing.T) {
	priv, pub := mustKeyPair(t)
	txPriv, txPub := mustKeyPair(t)
	tx := Transaction{Sender: txPub.Hex(), Key: txPub.Hex() + "/k", Value: "v", Nonce: 1}
	tx.Sign(txPriv)

	withTxs := Block{Height: 1, ParentHash: GenesisHash, StateHash: "abc", Proposer: pub.Hex(), Timestamp: 1000, Txs: []Transaction{tx}}
	withTxs.Sign(priv)

	withoutTxs := withTxs
	withoutTxs.Txs = nil

	if withTxs.Signature != withoutTxs.Signature {
		t.Fatal("header signature must not depend on tx content")
	}
	if err := withoutTxs.ValidateSignature(); err != nil {
		t.Fatalf("header-only block should verify with the same signature: %v", err)
	}
}

func TestBlockHashChangesWithTxs(t *testing.T) {
	priv, pub := mustKeyPair(t)
	txPriv, txPub := mustKeyPair(t)
	tx := Transaction{Sender: txPub.Hex(), Key: txPub.Hex() + "/k", Value: "v", Nonce: 1}
	tx.Sign(txPriv)

	b := Block{Height: 1, ParentHash: GenesisHash, StateHash: "abc", Proposer: pub.Hex(), Timestamp: 1000}
	b.Sign(priv)
	emptyHash := b.Hash()

	b.Txs = []Transaction{tx}
	fullHash := b.Hash()

	if emptyHash == fullHash {
		t.Fatal("block hash must depend on tx content even though the signature does not")
	}
}

func TestBlockTamperRejected(t *testing.T) {
	priv, pub := mustKeyPair(t)
	b := Block{Height: 1, ParentHash: GenesisHash, StateHash: "abc", Proposer: pub.Hex(), Timestamp: 1000}
	b.Sign(priv)
	b.StateHash = "tampered"
	if err := b.ValidateSignature(); err == nil {
		t.Fatal("tampered block verified, want failure")
	}
}

func TestVoteSignVerify(t *testing.T) {
	priv, pub := mustKeyPair(t)
	v := Vote{Type: Prevote, Height: 1, BlockHash: "abc", Voter: pub.Hex()}
	v.Sign(priv)
	if err := v.ValidateSignature(); err != nil {
		t.Fatalf("valid vote failed to verify: %v", err)
	}
}

func TestVoteCrossContextRejected(t *testing.T) {
	priv, pub := mustKeyPair(t)
	v := Vote{Type: Prevote, Height: 1, BlockHash: "abc", Voter: pub.Hex()}
	v.Sign(priv)

	// A vote signature must not validate as a transaction signature
	// built from the same field values; this exercises domain
	// separation end to end.
	forged := Transaction{Sender: pub.Hex(), Key: "abc", Value: "abc", Nonce: 1, Signature: v.Signature}
	if err := forged.ValidateSignature(); err == nil {
		t.Fatal("vote signature validated as a transaction signature")
	}
}

func TestVoteTypeTamperRejected(t *testing.T) {
	priv, pub := mustKeyPair(t)
	v := Vote{Type: Prevote, Height: 1, BlockHash: "abc", Voter: pub.Hex()}
	v.Sign(priv)
	v.Type = Precommit
	if err := v.ValidateSignature(); err == nil {
		t.Fatal("changing vote type after signing should invalidate signature")
	}
}
